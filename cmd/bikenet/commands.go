package main

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/LdDl/bikenet"
	"github.com/LdDl/bikenet/pgstore"
)

type runOptions struct {
	configFile string
	taskID     string
	geomFormat string
	migrate    bool
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}
	root := &cobra.Command{
		Use:          "bikenet",
		Short:        "bikenet grows bicycle networks between points of interest",
		Long:         `bikenet builds greedy triangulation and MST bicycle networks on street graphs of cities, routes them and evaluates network metrics.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Configuration file (yaml, json, toml). BIKENET_* environment variables override it")
	root.PersistentFlags().StringVar(&opts.taskID, "task", "", "Task identifier. Random UUID if empty")
	root.PersistentFlags().StringVar(&opts.geomFormat, "geomf", "wkt", "Format of segments geometry in CSV output. Expected values: wkt / geojson")
	root.PersistentFlags().BoolVar(&opts.migrate, "migrate", false, "Create database tables when absent")
	root.PersistentFlags().String("data-dir", "", "Directory with street records and POI files")
	root.PersistentFlags().String("output-dir", "", "Directory for results")
	root.PersistentFlags().String("source", "", "Street records without database: csv / osm")
	root.PersistentFlags().StringSlice("cities", nil, "Cities to process (separated by commas)")
	root.PersistentFlags().String("log-level", "", "Log level: debug / info / warn / error")

	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newMetricsCmd(opts))
	return root
}

func newGenerateCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Grow greedy triangulation and MST networks between POIs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, func(ctx context.Context, runner *bikenet.Runner, task bikenet.Task) (*bikenet.Report, error) {
				return runner.Generate(ctx, task)
			})
		},
	}
	cmd.Flags().String("network-type", "", "Street network type to route on")
	cmd.Flags().String("prune-measure", "", "Prune measure: betweenness / closeness / random")
	cmd.Flags().Int("quantiles", 0, "Number of prune quantiles")
	cmd.Flags().String("weighting", "", "Weight of candidate edges: euclidean / routed")
	cmd.Flags().Float64("buffer-walk", 0, "Coverage buffer in meters")
	cmd.Flags().Int("numnodepairs", 0, "Number of sampled node pairs for directness and efficiency")
	cmd.Flags().Float64("snapthreshold", 0, "Max distance in meters between raw POI and street node")
	cmd.Flags().Int("workers", 0, "Metrics workers. Number of CPUs if zero")
	cmd.Flags().Int64("seed", 0, "Seed for random pruning and sampling")
	cmd.Flags().Bool("contract", true, "Prepare contraction hierarchies?")
	return cmd
}

func newMetricsCmd(opts *runOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Evaluate metrics of existing infrastructure",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, func(ctx context.Context, runner *bikenet.Runner, task bikenet.Task) (*bikenet.Report, error) {
				return runner.Baseline(ctx, task)
			})
		},
	}
	cmd.Flags().Float64("buffer-walk", 0, "Coverage buffer in meters")
	cmd.Flags().Int("numnodepairs", 0, "Number of sampled node pairs for directness and efficiency")
	cmd.Flags().Int("workers", 0, "Metrics workers. Number of CPUs if zero")
	cmd.Flags().Int64("seed", 0, "Seed for sampling")
	return cmd
}

type runFunc func(ctx context.Context, runner *bikenet.Runner, task bikenet.Task) (*bikenet.Report, error)

func execute(cmd *cobra.Command, opts *runOptions, fn runFunc) error {
	cfg, err := loadConfig(opts.configFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return errors.Wrap(err, "Can't create logger")
	}
	defer logger.Sync()
	logger.Debug("configuration", zap.String("cfg", cfg.String()))

	task := bikenet.Task{ID: opts.taskID, Cities: cfg.Cities}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	ctx := cmd.Context()
	adapters, err := newAdapters(ctx, cfg, opts, logger)
	if err != nil {
		return err
	}
	defer adapters.Close()

	if cfg.Redis.Enabled() {
		var stop func()
		ctx, stop = newCancelWatcher(cfg.Redis, task.ID, logger).Watch(ctx)
		defer stop()
	}

	runner, err := bikenet.NewRunner(cfg, adapters.source, adapters.pois, adapters.writer, logger)
	if err != nil {
		return err
	}
	logger.Info("task started", zap.String("task", task.ID), zap.Strings("cities", task.Cities), zap.String("command", cmd.Name()))
	report, err := fn(ctx, runner, task)
	if report != nil {
		logReport(logger, report)
	}
	return err
}

func logReport(logger *zap.Logger, report *bikenet.Report) {
	for _, item := range report.Items {
		logger.Warn("item failed",
			zap.String("city", item.CityID),
			zap.String("network_type", item.NetworkType),
			zap.String("connectivity", item.Connectivity),
			zap.Int("prune_index", item.PruneIndex),
			zap.Error(item.Err),
		)
	}
	for cityID, err := range report.Failed {
		logger.Error("city failed", zap.String("city", cityID), zap.Error(err))
	}
	logger.Info("task finished",
		zap.String("task", report.TaskID),
		zap.Strings("completed", report.Completed),
		zap.Strings("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)),
		zap.Int("item_errors", len(report.Items)),
	)
}

// adapters are input and output ends of a run: PostGIS when database is configured, files otherwise
type adapters struct {
	source bikenet.RecordSource
	pois   bikenet.POISource
	writer bikenet.ResultWriter
	closer io.Closer
}

func newAdapters(ctx context.Context, cfg bikenet.Config, opts *runOptions, logger *zap.Logger) (*adapters, error) {
	if !cfg.Database.Enabled() {
		var source bikenet.RecordSource = bikenet.NewCSVSource(cfg.DataDir)
		if cfg.Source == bikenet.SOURCE_OSM {
			source = bikenet.NewOSMSource(cfg.DataDir, bikenet.WithOSMLogger(logger))
		}
		return &adapters{
			source: source,
			pois:   &bikenet.FilePOISource{Dir: cfg.DataDir},
			writer: bikenet.NewFileWriter(cfg.OutputDir, opts.geomFormat, logger),
		}, nil
	}
	store, err := pgstore.New(cfg.Database, pgstore.WithSnapThreshold(cfg.SnapThreshold), pgstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if opts.migrate {
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
	}
	return &adapters{source: store, pois: store, writer: store, closer: store}, nil
}

func (a *adapters) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}
