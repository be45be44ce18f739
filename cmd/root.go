// Package cmd provides the sociometer command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/cdr-sociometer/config"
	"github.com/jalad-shrimali/cdr-sociometer/engine"
	"github.com/jalad-shrimali/cdr-sociometer/logging"
	"github.com/jalad-shrimali/cdr-sociometer/profiler"
	"github.com/jalad-shrimali/cdr-sociometer/store"
	"github.com/jalad-shrimali/cdr-sociometer/window"
)

// flags shared by the command tree; config file values are overridden only
// by flags that were set explicitly.
type flags struct {
	configPath     string
	logLevel       string
	logFormat      string
	outDir         string
	formats        []string
	sqlitePath     string
	workers        int
	partitions     int
	weeks          int
	divisionPrefix bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:   "sociometer <dataset_uri> <spatial_division_file> <start_date> <end_date>",
		Short: "Build weekly mobility profiles from call detail records",
		Long: `Sociometer reads a CDR dataset, attributes each call to a region of the
spatial division and writes, for every complete 4-week ISO window between
start_date and end_date (YYYY-MM-DD), one basket per user and region.

Examples:
  sociometer cdr/ aree_roma.txt 2016-01-04 2016-02-28
  sociometer 'cdr/*.csv.gz' cells.db 2016-01-04 2016-01-31 --format parquet,xlsx
  sociometer weeks 2016-01-01 2016-02-15
  sociometer serve --addr :9090`,
		Args:          cobra.ExactArgs(4),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(cmd, f, args)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	pf.IntVar(&f.weeks, "weeks-per-window", 0, "ISO weeks per window")

	fl := root.Flags()
	fl.StringVarP(&f.outDir, "out", "o", "", "output directory")
	fl.StringSliceVarP(&f.formats, "format", "f", nil, "output formats: parquet, xlsx, sqlite")
	fl.StringVar(&f.sqlitePath, "sqlite", "", "SQLite database for the sqlite format")
	fl.IntVarP(&f.workers, "workers", "w", 0, "parallel workers (0 = CPU count)")
	fl.IntVar(&f.partitions, "partitions", 0, "dataset partitions (0 = twice the workers)")
	fl.BoolVar(&f.divisionPrefix, "division-prefix", false, "put the spatial division name in output dataset names")

	root.AddCommand(newWeeksCmd(f), newServeCmd(f), newShowCmd())
	return root
}

func Execute() error {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads --config and applies the flags the user set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	set := cmd.Flags().Changed
	if set("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if set("log-format") {
		cfg.Log.Format = f.logFormat
	}
	if set("weeks-per-window") {
		cfg.Profile.WeeksPerWindow = f.weeks
	}
	if set("out") {
		cfg.Output.Dir = f.outDir
	}
	if set("format") {
		cfg.Output.Formats = f.formats
	}
	if set("sqlite") {
		cfg.Output.SQLitePath = f.sqlitePath
	}
	if set("workers") {
		cfg.Engine.Workers = f.workers
	}
	if set("partitions") {
		cfg.Engine.Partitions = f.partitions
	}
	if set("division-prefix") {
		cfg.Output.DivisionPrefix = f.divisionPrefix
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format, w)
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runProfile(cmd *cobra.Command, f *flags, args []string) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	start, err := window.ParseDate(args[2])
	if err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	end, err := window.ParseDate(args[3])
	if err != nil {
		return fmt.Errorf("end_date: %w", err)
	}

	sink, err := store.Open(store.Options{
		Dir:        cfg.Output.Dir,
		Formats:    cfg.Output.Formats,
		SQLitePath: cfg.Output.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	eng := engine.New(cfg.Engine.Workers, cfg.Engine.Partitions)
	res, err := profiler.New(eng, sink, logger).Run(ctx, profiler.Options{
		Dataset:        args[0],
		Division:       args[1],
		Start:          start,
		End:            end,
		WeeksPerWindow: cfg.Profile.WeeksPerWindow,
		DivisionPrefix: cfg.Output.DivisionPrefix,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, w := range res.Windows {
		fmt.Fprintf(out, "%s\tusers=%d\tbaskets=%d\t%s\n", w.Name, w.Users, w.Baskets, strings.Join(w.Locations, ","))
	}
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, "skipped\t%s\n", weekNames(res.Skipped))
	}
	return nil
}

func weekNames(weeks []window.Week) string {
	names := make([]string, len(weeks))
	for i, w := range weeks {
		names[i] = w.String()
	}
	return strings.Join(names, " ")
}
