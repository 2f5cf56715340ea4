package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/embell139/prep-ILAMB/internal/exitcode"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Create a cancellable context (for graceful shutdown)
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		code := exitCode(err)
		slog.ErrorContext(ctx, "prep-ilamb failed", "error", err, "exit_code", code)
		return code
	}
	return exitcode.Success
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		envFile string
		verbose bool
	)
	root := &cobra.Command{
		Use:   "prep-ilamb",
		Short: "Regrid Catchment-CN output into ILAMB-ready NetCDF files.",
		Long: `prep-ilamb reads monthly Catchment-CN tile output, maps its variables to
CF names, regrids them onto a regular lat/lon raster with a no-data mask
away from the model tiles, and writes one NetCDF file per month.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Configure the global logger
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: level})))

			// Ensure environment variables are loaded
			if err := godotenv.Load(envFile); err != nil {
				slog.Warn("failed to load env vars", "file", envFile, "error", err)
			}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &exitError{code: exitcode.ConfigError, err: err}
	})
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd(stderr), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of prep-ilamb",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prep-ilamb %s\n", version)
		},
	}
}
