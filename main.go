package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"luminastay/api"
	"luminastay/catalog"
	"luminastay/config"
	"luminastay/metrics"
	"luminastay/ml"
	"luminastay/models"
	"luminastay/services"
	"luminastay/storage"
	"luminastay/utils"
)

const usage = `usage: luminastay <command> [flags]

commands:
  generate   write a synthetic listing dataset
  train      fit the price model on the dataset and save the artifact
  serve      run the prediction and analytics HTTP API
  analyze    print market statistics for the dataset
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logger := utils.NewLogger()
	cfg := config.Load()
	cat := catalog.Morocco()

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(cfg, cat, logger, os.Args[2:])
	case "train":
		err = runTrain(cfg, cat, logger, os.Args[2:])
	case "serve":
		err = runServe(cfg, cat, logger, os.Args[2:])
	case "analyze":
		err = runAnalyze(cfg, cat, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("%s failed: %v", os.Args[1], err)
		os.Exit(1)
	}
}

func openDataset(cfg *config.Config, logger *utils.Logger) (storage.DatasetStore, error) {
	switch cfg.DatasetBackend {
	case "csv":
		return storage.NewCSVStore(cfg.DatasetPath, logger), nil
	case "postgres":
		pg, err := storage.NewPostgresStore(context.Background(), cfg.DSN(), cfg.PostgresMaxRetries, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrDatasetUnavailable, err)
		}
		return pg, nil
	}
	return nil, fmt.Errorf("unknown DATASET_BACKEND %q (want csv or postgres)", cfg.DatasetBackend)
}

func runGenerate(cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	n := fs.Int("n", cfg.NumSamples, "number of listings")
	seed := fs.Uint64("seed", cfg.GeneratorSeed, "random seed")
	_ = fs.Parse(args)

	store, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("=== Generating synthetic data ===")
	listings := services.NewGenerator(cat, cfg.MaxConcurrency, logger).Generate(*n, *seed)
	if err := store.Write(listings); err != nil {
		return err
	}
	logger.Info("Dataset generated with %d samples (backend: %s)", len(listings), cfg.DatasetBackend)
	return nil
}

func runTrain(cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	out := fs.String("out", cfg.ModelPath, "artifact output path")
	strict := fs.Bool("strict", false, "drop listings that break catalog or property invariants")
	_ = fs.Parse(args)

	store, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	listings, err := store.ReadAll()
	if err != nil {
		return err
	}
	if *strict {
		listings = services.NewCleaner(cat, logger).Clean(listings)
	}

	trainer := ml.NewTrainer(ml.TrainConfig{
		TestFraction: cfg.TestFraction,
		SplitSeed:    cfg.SplitSeed,
		Forest: ml.ForestConfig{
			Trees:          cfg.NumTrees,
			Seed:           cfg.ForestSeed,
			MaxDepth:       cfg.MaxDepth,
			MinSamplesLeaf: cfg.MinSamplesLeaf,
			Workers:        cfg.MaxConcurrency,
		},
	}, logger)

	logger.Info("=== Training Random Forest Model on %d listings ===", len(listings))
	artifact, err := trainer.Train(listings)
	if err != nil {
		return err
	}
	if err := storage.SaveArtifact(*out, artifact); err != nil {
		return err
	}
	logger.Info("Model %s saved to %s", artifact.ID, *out)
	return nil
}

func runServe(cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	_ = fs.Parse(args)

	store, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := metrics.New()
	predictor := services.NewPredictor(logger, reg)
	if err := predictor.Load(cfg.ModelPath); err != nil {
		logger.Warn("Starting without a model: %v", err)
	}

	var cache services.ReportCache = services.NewMemoryCache(cfg.AnalyticsCacheTTL)
	if cfg.RedisAddr != "" {
		rc := services.NewRedisCache(cfg.RedisAddr, cfg.AnalyticsCacheTTL, logger)
		defer rc.Close()
		cache = rc
	}

	h := &api.Handlers{
		Predictor: predictor,
		Insights:  services.NewInsightService(cat, store, cache, reg, logger),
		Cleaner:   services.NewCleaner(cat, logger),
		ModelPath: cfg.ModelPath,
		Log:       logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reloadOnHangup(ctx, predictor, cfg.ModelPath, logger)

	return api.Serve(ctx, *addr, api.NewHandler(h, reg, cfg.CORSOrigins, logger), logger)
}

// reloadOnHangup reloads the artifact each time the process receives SIGHUP.
func reloadOnHangup(ctx context.Context, p *services.Predictor, path string, logger *utils.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("[predictor] SIGHUP received, reloading %s", path)
			_ = p.Load(path)
		}
	}
}

func runAnalyze(cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	_ = fs.Parse(args)

	store, err := openDataset(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := services.NewInsightService(cat, store, services.NewMemoryCache(0), nil, logger)
	report, err := svc.Report(context.Background())
	if errors.Is(err, models.ErrDatasetUnavailable) {
		return fmt.Errorf("%w (run `luminastay generate` first)", err)
	}
	if err != nil {
		return err
	}
	svc.Print(report)
	return nil
}
