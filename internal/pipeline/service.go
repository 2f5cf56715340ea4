package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/embell139/prep-ILAMB/internal/catalog"
	"github.com/embell139/prep-ILAMB/internal/catchcn"
	"github.com/embell139/prep-ILAMB/internal/clickhouse"
	"github.com/embell139/prep-ILAMB/internal/model"
	"github.com/embell139/prep-ILAMB/internal/ncwrite"
	"github.com/embell139/prep-ILAMB/internal/regrid"
	"github.com/embell139/prep-ILAMB/internal/storage"
)

// SourceLocator finds the model output file of a period.
type SourceLocator interface {
	Locate(p model.Period) (string, error)
}

// SourceReader reads a model output file into mapped variables.
type SourceReader interface {
	Read(path string) (*catchcn.Dataset, error)
}

// FileWriter writes one regridded month.
type FileWriter interface {
	Write(path string, o *ncwrite.Output) error
}

// FileWriterFunc adapts a function to FileWriter.
type FileWriterFunc func(path string, o *ncwrite.Output) error

func (f FileWriterFunc) Write(path string, o *ncwrite.Output) error { return f(path, o) }

// ObjectStorage writes data streams to object storage.
type ObjectStorage interface {
	Put(ctx context.Context, key string, data io.Reader) error
}

// Catalog records processed files.
type Catalog interface {
	Record(ctx context.Context, e catalog.Entry) error
}

// History finds the output an earlier run wrote for an input file.
type History interface {
	LastOutput(ctx context.Context, input string) (string, bool, error)
}

// GridLoader loads regridded cells into the query store.
type GridLoader interface {
	LoadField(ctx context.Context, b clickhouse.GridBatch) (int, error)
}

// Sinks are the optional destinations of a written file. Nil fields are skipped.
type Sinks struct {
	Storage ObjectStorage
	Catalog Catalog
	Loader  GridLoader
	// History lets a month be skipped when an earlier run wrote its output
	// under another name or directory that still exists.
	History History
}

// Options configures a Service.
type Options struct {
	OutputDir string
	Suffix    string
	Grid      regrid.GridSpec
	Regrid    regrid.Options
	// LogFile is stamped on every output as the run's processed-files log.
	LogFile string
	// VariableFiles also writes one file per variable spanning every
	// requested month, under OutputDir/<variable>/.
	VariableFiles bool
	// FileType labels the per-variable files; see catalog.FileTypeLabel.
	FileType string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Request selects the months to process.
type Request struct {
	Periods        []model.Period
	ForceOverwrite bool
}

// FileResult describes one output, written or left in place.
type FileResult struct {
	Period    model.Period
	Input     string
	Output    string
	ObjectKey string
	Variables []string
	Skipped   bool
}

// Report lists what a run did, in period order.
type Report struct {
	Processed []FileResult
	Skipped   []string
	// Series are the per-variable files, when Options.VariableFiles is set.
	Series []string
}

// Service orchestrates the monthly steps: locate, read, regrid, write, then
// the optional upload, load and catalog steps.
type Service struct {
	locator SourceLocator
	reader  SourceReader
	writer  FileWriter
	sinks   Sinks
	opts    Options
}

func NewService(locator SourceLocator, reader SourceReader, writer FileWriter, sinks Sinks, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{locator: locator, reader: reader, writer: writer, sinks: sinks, opts: opts}
}

// Run processes every requested period in order and stops at the first
// failure, returning what was done so far.
func (s *Service) Run(ctx context.Context, req Request, runID model.RunID) (*Report, error) {
	if err := runID.Validate(); err != nil {
		return nil, err
	}
	if len(req.Periods) == 0 {
		return nil, errors.New("no periods requested")
	}

	var series *seriesSet
	if s.opts.VariableFiles {
		series = newSeriesSet(s.opts, req.Periods, runID)
		defer series.abort()
	}

	report := &Report{}
	for _, p := range req.Periods {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := s.process(ctx, p, req.ForceOverwrite, runID, series)
		if err != nil {
			return report, err
		}
		if res.Skipped {
			report.Skipped = append(report.Skipped, res.Output)
			continue
		}
		report.Processed = append(report.Processed, *res)
	}

	if series != nil {
		last := req.Periods[len(req.Periods)-1]
		paths, err := series.close()
		if err != nil {
			return report, &StepError{Step: StepSeries, Period: last, Err: err}
		}
		report.Series = paths
		slog.InfoContext(ctx, "variable files written", "files", len(paths), "dir", s.opts.OutputDir)
		if s.sinks.Storage != nil {
			for _, path := range paths {
				key := storage.ObjectKey{
					Source: storage.SourceCatchCN,
					Period: req.Periods[0],
					RunID:  runID,
					Name:   filepath.Base(path),
				}
				if err := s.upload(ctx, key.Key(), path); err != nil {
					return report, &StepError{Step: StepStore, Period: last, Err: err}
				}
				slog.InfoContext(ctx, "variable file uploaded", "key", key.Key())
			}
		}
	}
	return report, nil
}

func (s *Service) process(ctx context.Context, p model.Period, force bool, runID model.RunID, series *seriesSet) (*FileResult, error) {
	if err := p.Validate(); err != nil {
		return nil, &StepError{Step: StepLocate, Period: p, Err: err}
	}
	input, err := s.locator.Locate(p)
	if err != nil {
		return nil, &StepError{Step: StepLocate, Period: p, Err: err}
	}
	output := filepath.Join(s.opts.OutputDir, catchcn.OutputName(input, s.opts.Suffix))
	slog.InfoContext(ctx, "processing period", "period", p, "input", input, "output", output, "run_id", runID)

	var skipped *FileResult
	if force {
		if _, err := os.Stat(output); err == nil {
			slog.InfoContext(ctx, "overwriting previous output", "period", p, "output", output)
		}
	} else {
		prev, ok, err := s.previousOutput(ctx, input, output)
		if err != nil {
			return nil, &StepError{Step: StepCatalog, Period: p, Err: err}
		}
		if ok {
			slog.InfoContext(ctx, "output exists, skipping", "period", p, "output", prev)
			skipped = &FileResult{Period: p, Input: input, Output: prev, Skipped: true}
			if series == nil {
				return skipped, nil
			}
		}
	}

	ds, err := s.reader.Read(input)
	if err != nil {
		return nil, &StepError{Step: StepRead, Period: p, Err: err}
	}

	vars, grid, err := s.regrid(ctx, p, ds)
	if err != nil {
		return nil, &StepError{Step: StepRegrid, Period: p, Err: err}
	}

	if series != nil {
		if err := series.append(ctx, p, vars, grid); err != nil {
			return nil, &StepError{Step: StepSeries, Period: p, Err: err}
		}
	}
	if skipped != nil {
		return skipped, nil
	}

	catalogID, err := uuid.NewV7()
	if err != nil {
		return nil, &StepError{Step: StepCatalog, Period: p, Err: err}
	}
	out := &ncwrite.Output{
		Period:    p,
		Grid:      grid,
		Variables: vars,
		RunID:     runID,
		Input:     input,
		Created:   s.opts.Now(),
		LogFile:   s.opts.LogFile,
	}
	if err := s.writer.Write(output, out); err != nil {
		return nil, &StepError{Step: StepWrite, Period: p, Err: err}
	}
	slog.InfoContext(ctx, "output written", "period", p, "output", output)

	res := &FileResult{Period: p, Input: input, Output: output, Variables: ds.Names()}

	if s.sinks.Storage != nil {
		key := storage.ObjectKey{
			Source: storage.SourceCatchCN,
			Period: p,
			RunID:  runID,
			Name:   filepath.Base(output),
		}
		if err := s.upload(ctx, key.Key(), output); err != nil {
			return nil, &StepError{Step: StepStore, Period: p, Err: err}
		}
		res.ObjectKey = key.Key()
		slog.InfoContext(ctx, "output uploaded", "period", p, "key", res.ObjectKey)
	}

	if s.sinks.Loader != nil {
		for _, v := range vars {
			n, err := s.sinks.Loader.LoadField(ctx, clickhouse.GridBatch{
				Variable:  v.Name,
				Unit:      v.Units,
				Timestamp: p.Start(),
				CatalogID: catalogID,
				Field:     &regrid.Field{Grid: grid, Values: v.Values},
			})
			if err != nil {
				return nil, &StepError{Step: StepLoad, Period: p, Err: fmt.Errorf("%s: %w", v.Name, err)}
			}
			slog.DebugContext(ctx, "variable loaded", "period", p, "variable", v.Name, "rows", n)
		}
	}

	if s.sinks.Catalog != nil {
		err := s.sinks.Catalog.Record(ctx, catalog.Entry{
			CatalogID:   catalogID,
			RunID:       runID,
			Period:      p,
			Input:       input,
			Output:      output,
			ObjectKey:   res.ObjectKey,
			ProcessedAt: s.opts.Now(),
		})
		if err != nil {
			return nil, &StepError{Step: StepCatalog, Period: p, Err: err}
		}
	}

	return res, nil
}

// previousOutput reports an existing output for input: the expected path,
// or failing that the one History last recorded.
func (s *Service) previousOutput(ctx context.Context, input, output string) (string, bool, error) {
	if _, err := os.Stat(output); err == nil {
		return output, true, nil
	}
	if s.sinks.History == nil {
		return "", false, nil
	}
	prev, ok, err := s.sinks.History.LastOutput(ctx, input)
	if err != nil || !ok {
		return "", false, err
	}
	if _, err := os.Stat(prev); err != nil {
		slog.DebugContext(ctx, "recorded output is gone", "input", input, "output", prev)
		return "", false, nil
	}
	return prev, true, nil
}

// regrid builds one Regridder for the file and applies it to every variable.
func (s *Service) regrid(ctx context.Context, p model.Period, ds *catchcn.Dataset) ([]ncwrite.Variable, *regrid.Grid, error) {
	r, err := regrid.NewRegridder(ds.Points, s.opts.Grid, s.opts.Regrid)
	if err != nil {
		return nil, nil, err
	}
	grid := r.Grid()
	slog.InfoContext(ctx, "regridding",
		"period", p, "points", ds.Points.Len(), "lon_step", s.opts.Grid.LonStep, "lat_step", s.opts.Grid.LatStep,
		"cells", grid.Len())

	start := time.Now()
	if _, err := r.Mask(); err != nil {
		return nil, nil, err
	}
	slog.InfoContext(ctx, "mask built", "period", p, "seconds", time.Since(start).Seconds())

	start = time.Now()
	vars := make([]ncwrite.Variable, 0, len(ds.Vars))
	for _, name := range ds.Names() {
		v := ds.Vars[name]
		field, err := r.Regrid(v.Values)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		vars = append(vars, ncwrite.Variable{
			Name:     name,
			LongName: v.LongName,
			Units:    v.Units,
			Values:   field.Values,
		})
	}
	slog.InfoContext(ctx, "regridding variables took", "period", p, "variables", len(vars), "seconds", time.Since(start).Seconds())
	return vars, grid, nil
}

func (s *Service) upload(ctx context.Context, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return s.sinks.Storage.Put(ctx, key, f)
}
