package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/embell139/prep-ILAMB/internal/catalog"
	"github.com/embell139/prep-ILAMB/internal/model"
	"github.com/embell139/prep-ILAMB/internal/ncwrite"
	"github.com/embell139/prep-ILAMB/internal/regrid"
)

// seriesSet keeps one open per-variable file for every variable of the run.
// Files are opened on the first month, so the variable set comes from data.
type seriesSet struct {
	dir        string
	label      string
	start, end model.Period
	runID      model.RunID
	created    time.Time
	logFile    string

	writers map[string]*ncwrite.SeriesWriter
}

func newSeriesSet(opts Options, periods []model.Period, runID model.RunID) *seriesSet {
	return &seriesSet{
		dir:     opts.OutputDir,
		label:   catalog.FileTypeLabel(opts.FileType),
		start:   periods[0],
		end:     periods[len(periods)-1],
		runID:   runID,
		created: opts.Now(),
		logFile: opts.LogFile,
	}
}

func (ss *seriesSet) append(ctx context.Context, p model.Period, vars []ncwrite.Variable, grid *regrid.Grid) error {
	if ss.writers == nil {
		if err := ss.open(vars, grid); err != nil {
			return err
		}
	}
	if len(vars) != len(ss.writers) {
		return fmt.Errorf("%d variables, series were opened with %d", len(vars), len(ss.writers))
	}
	for _, v := range vars {
		w, ok := ss.writers[v.Name]
		if !ok {
			return fmt.Errorf("variable %s has no series", v.Name)
		}
		if err := w.Append(p, v.Values); err != nil {
			return err
		}
	}
	slog.DebugContext(ctx, "months appended to series", "period", p, "variables", len(vars))
	return nil
}

func (ss *seriesSet) open(vars []ncwrite.Variable, grid *regrid.Grid) error {
	ss.writers = make(map[string]*ncwrite.SeriesWriter, len(vars))
	for _, v := range vars {
		dir := filepath.Join(ss.dir, v.Name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		path := filepath.Join(dir, ncwrite.SeriesName(v.Name, ss.label, ss.start, ss.end))
		w, err := ncwrite.CreateSeries(path, &ncwrite.Series{
			Variable: ncwrite.Variable{Name: v.Name, LongName: v.LongName, Units: v.Units},
			Grid:     grid,
			RunID:    ss.runID,
			Created:  ss.created,
			LogFile:  ss.logFile,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", v.Name, err)
		}
		ss.writers[v.Name] = w
	}
	return nil
}

// close moves every series into place and returns the paths in variable
// order. After the first failure the remaining files are discarded.
func (ss *seriesSet) close() ([]string, error) {
	names := make([]string, 0, len(ss.writers))
	for name := range ss.writers {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for i, name := range names {
		w := ss.writers[name]
		if err := w.Close(); err != nil {
			for _, rest := range names[i+1:] {
				ss.writers[rest].Abort()
			}
			ss.writers = nil
			return paths, fmt.Errorf("%s: %w", name, err)
		}
		paths = append(paths, w.Path())
	}
	ss.writers = nil
	return paths, nil
}

func (ss *seriesSet) abort() {
	for _, w := range ss.writers {
		w.Abort()
	}
	ss.writers = nil
}
