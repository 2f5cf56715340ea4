package main

import (
	"fmt"
	"io"

	"github.com/cheggaaa/pb"

	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// progressBar renders mask construction, one bar per file.
type progressBar struct {
	out io.Writer
	bar *pb.ProgressBar
}

func newProgressBar(out io.Writer) *progressBar {
	return &progressBar{out: out}
}

// update is a regrid.ProgressFunc.
func (p *progressBar) update(pr regrid.Progress) {
	if p.bar == nil {
		p.bar = pb.New(pr.Total)
		p.bar.Output = p.out
		p.bar.ShowPercent = true
		p.bar.ShowCounters = true
		p.bar.ShowTimeLeft = true
		p.bar.Prefix("Processing points ")
		p.bar.Start()
	}
	p.bar.Add(pr.Batch)
	p.bar.Postfix(fmt.Sprintf(" batch_time=%.2fs rate=%.0f pts/sec", pr.Took.Seconds(), pr.Rate()))
	if pr.Done >= pr.Total {
		p.bar.Finish()
		p.bar = nil
	}
}
