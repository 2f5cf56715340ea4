package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/embell139/prep-ILAMB/internal/catalog"
	"github.com/embell139/prep-ILAMB/internal/catchcn"
	"github.com/embell139/prep-ILAMB/internal/clickhouse"
	"github.com/embell139/prep-ILAMB/internal/config"
	"github.com/embell139/prep-ILAMB/internal/exitcode"
	"github.com/embell139/prep-ILAMB/internal/model"
	"github.com/embell139/prep-ILAMB/internal/ncwrite"
	"github.com/embell139/prep-ILAMB/internal/pipeline"
	"github.com/embell139/prep-ILAMB/internal/regrid"
	"github.com/embell139/prep-ILAMB/internal/storage"
)

// runFlags are the command line options of the run command. Zero values of
// the regrid overrides leave the environment configuration in place.
type runFlags struct {
	startYear, endYear   int
	startMonth, endMonth int
	from, to             string
	runID                string
	force                bool
	progress             bool
	variables            string
	variableFiles        bool

	lonStep, latStep float64
	maxDistance      float64
	batchSize        int
	workers          int
}

func newRunCmd(progressOut io.Writer) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Regrid every month of a year range.",
		Long: `run processes one Catchment-CN output file per month. Months run from
--start-month to --end-month within every year from --start-year to
--end-year, or continuously from --from to --to (YYYY-MM). Outputs that
already exist, or that the catalog recorded at a path that still exists,
are left alone unless --force-overwrite is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, progressOut)
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&f.startYear, "start-year", 0, "first year to process")
	fl.IntVar(&f.endYear, "end-year", 0, "last year to process")
	fl.IntVar(&f.startMonth, "start-month", 1, "first month of each year")
	fl.IntVar(&f.endMonth, "end-month", 12, "last month of each year")
	fl.StringVar(&f.from, "from", "", "first month to process, YYYY-MM (instead of the year flags)")
	fl.StringVar(&f.to, "to", "", "last month to process, YYYY-MM")
	fl.StringVar(&f.runID, "run-id", "", "run identifier (UUIDv7); generated when empty")
	fl.BoolVarP(&f.force, "force-overwrite", "f", false, "overwrite existing outputs")
	fl.BoolVar(&f.progress, "progress", false, "show a progress bar while building the mask")
	fl.StringVar(&f.variables, "variables", "", "TOML variable map, overrides CATCHCN_VARIABLES_FILE")
	fl.BoolVar(&f.variableFiles, "variable-files", false, "also write one file per variable spanning all months")
	fl.Float64Var(&f.lonStep, "lon-step", 0, "target longitude resolution in degrees")
	fl.Float64Var(&f.latStep, "lat-step", 0, "target latitude resolution in degrees")
	fl.Float64Var(&f.maxDistance, "max-distance", 0, "mask radius in degrees")
	fl.IntVar(&f.batchSize, "batch-size", 0, "mask query batch size")
	fl.IntVar(&f.workers, "workers", 0, "concurrent mask batches")
	return cmd
}

func run(ctx context.Context, f *runFlags, progressOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return withCode(exitcode.ConfigError, "load config: %w", err)
	}
	f.apply(cfg)

	periods, err := f.periods()
	if err != nil {
		return withCode(exitcode.ConfigError, "select months: %w", err)
	}
	runID, err := f.resolveRunID()
	if err != nil {
		return withCode(exitcode.ConfigError, "run id: %w", err)
	}
	vm := catchcn.DefaultVariableMap()
	if cfg.VariablesFile != "" {
		if vm, err = catchcn.LoadVariableMap(cfg.VariablesFile); err != nil {
			return withCode(exitcode.ConfigError, "variable map: %w", err)
		}
	}
	grid := regrid.GlobalGrid(cfg.Regrid.LonStep, cfg.Regrid.LatStep)
	if err := grid.Validate(); err != nil {
		return withCode(exitcode.ConfigError, "target grid: %w", err)
	}

	ropts := regrid.DefaultOptions(cfg.Regrid.MaxDistance)
	ropts.BatchSize = cfg.Regrid.BatchSize
	ropts.Workers = cfg.Regrid.Workers
	if err := ropts.Validate(); err != nil {
		return withCode(exitcode.ConfigError, "regrid options: %w", err)
	}
	if f.progress {
		ropts.Progress = newProgressBar(progressOut).update
	}

	for _, dir := range []string{cfg.OutputDir, cfg.CatalogLogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return withCode(exitcode.StorageError, "create %s: %w", dir, err)
		}
	}

	now := time.Now()
	sinks, logFile, closeSinks, err := openSinks(ctx, cfg, now)
	if err != nil {
		return withCode(exitcode.NetworkError, "open sinks: %w", err)
	}
	defer closeSinks()

	svc := pipeline.NewService(
		catchcn.Locator{InputDir: cfg.InputDir, FileType: cfg.FileType},
		catchcn.Reader{Variables: vm},
		pipeline.FileWriterFunc(ncwrite.WriteFile),
		sinks,
		pipeline.Options{
			OutputDir: cfg.OutputDir,
			Suffix:    cfg.Suffix,
			Grid:      grid,
			Regrid:    ropts,
			LogFile:   logFile,

			VariableFiles: f.variableFiles,
			FileType:      cfg.FileType,
		},
	)

	slog.InfoContext(ctx, "starting run",
		"run_id", runID,
		"first", periods[0],
		"last", periods[len(periods)-1],
		"months", len(periods),
		"input_dir", cfg.InputDir,
		"output_dir", cfg.OutputDir,
		"file_type", cfg.FileType,
	)
	report, err := svc.Run(ctx, pipeline.Request{Periods: periods, ForceOverwrite: f.force}, runID)
	if report != nil {
		slog.InfoContext(ctx, "run finished",
			"run_id", runID,
			"processed", len(report.Processed),
			"skipped", len(report.Skipped),
			"variable_files", len(report.Series),
			"log_file", logFile,
		)
	}
	return err
}

func (f *runFlags) apply(cfg *config.Config) {
	if f.variables != "" {
		cfg.VariablesFile = f.variables
	}
	if f.lonStep != 0 {
		cfg.Regrid.LonStep = f.lonStep
	}
	if f.latStep != 0 {
		cfg.Regrid.LatStep = f.latStep
	}
	if f.maxDistance != 0 {
		cfg.Regrid.MaxDistance = f.maxDistance
	}
	if f.batchSize != 0 {
		cfg.Regrid.BatchSize = f.batchSize
	}
	if f.workers != 0 {
		cfg.Regrid.Workers = f.workers
	}
}

func (f *runFlags) periods() ([]model.Period, error) {
	if f.from != "" || f.to != "" {
		return f.span()
	}
	if f.startYear == 0 || f.endYear == 0 {
		return nil, fmt.Errorf("--start-year and --end-year are required")
	}
	if f.startMonth < 1 || f.endMonth > 12 {
		return nil, fmt.Errorf("months must be within 1..12, got %d..%d", f.startMonth, f.endMonth)
	}
	return model.Months(f.startYear, f.endYear, time.Month(f.startMonth), time.Month(f.endMonth))
}

// span is the continuous month range given by --from and --to.
func (f *runFlags) span() ([]model.Period, error) {
	if f.startYear != 0 || f.endYear != 0 {
		return nil, fmt.Errorf("--from/--to cannot be combined with --start-year/--end-year")
	}
	if f.from == "" || f.to == "" {
		return nil, fmt.Errorf("--from and --to must be given together")
	}
	start, err := model.ParsePeriod(f.from)
	if err != nil {
		return nil, fmt.Errorf("--from: %w", err)
	}
	end, err := model.ParsePeriod(f.to)
	if err != nil {
		return nil, fmt.Errorf("--to: %w", err)
	}
	return model.Range(start, end)
}

func (f *runFlags) resolveRunID() (model.RunID, error) {
	if f.runID == "" {
		return model.NewRunID()
	}
	id := model.RunID(f.runID)
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// openSinks connects the optional destinations the configuration enables.
// The returned log file is the manifest path when no Postgres catalog is
// configured.
func openSinks(ctx context.Context, cfg *config.Config, now time.Time) (pipeline.Sinks, string, func(), error) {
	var (
		sinks   pipeline.Sinks
		logFile string
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				slog.Warn("failed to close sink", "error", err)
			}
		}
	}

	if cfg.MinIOEndpoint != "" {
		mc, err := storage.NewMinIOClient(ctx, storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return sinks, "", closeAll, fmt.Errorf("minio: %w", err)
		}
		sinks.Storage = mc
		slog.InfoContext(ctx, "uploading outputs", "endpoint", cfg.MinIOEndpoint, "bucket", cfg.MinIOBucket)
	}

	if cfg.ClickHouseHost != "" {
		ch, err := clickhouse.NewClient(clickhouse.Config{
			Host:     cfg.ClickHouseHost,
			Port:     cfg.ClickHousePort,
			User:     cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
			Database: cfg.ClickHouseDatabase,
		}, slog.Default())
		if err != nil {
			closeAll()
			return sinks, "", func() {}, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, ch.Close)
		if err := ch.EnsureSchema(ctx); err != nil {
			closeAll()
			return sinks, "", func() {}, fmt.Errorf("clickhouse: %w", err)
		}
		sinks.Loader = ch
		slog.InfoContext(ctx, "loading grid cells", "host", cfg.ClickHouseHost, "database", cfg.ClickHouseDatabase)
	}

	if cfg.CatalogDSN != "" {
		pg, err := catalog.OpenPostgres(ctx, cfg.CatalogDSN)
		if err != nil {
			closeAll()
			return sinks, "", func() {}, fmt.Errorf("catalog: %w", err)
		}
		closers = append(closers, pg.Close)
		sinks.Catalog = pg
		sinks.History = pg
	} else {
		m := catalog.NewManifest(cfg.CatalogLogDir, cfg.FileType, now)
		closers = append(closers, m.Close)
		sinks.Catalog = m
		logFile = m.Path()
	}
	return sinks, logFile, closeAll, nil
}
