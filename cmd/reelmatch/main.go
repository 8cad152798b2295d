package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/aryannaik/reelmatch/internal/catalog"
	"github.com/aryannaik/reelmatch/internal/config"
	"github.com/aryannaik/reelmatch/internal/history"
	"github.com/aryannaik/reelmatch/internal/letterboxd"
	"github.com/aryannaik/reelmatch/internal/logging"
	"github.com/aryannaik/reelmatch/internal/recommend"
	"github.com/aryannaik/reelmatch/internal/server"
)

func main() {
	checkFlag := flag.Bool("check", false, "Load and validate the catalog, then exit")
	titleFlag := flag.String("title", "", "Print recommendations for this exact title and exit")
	kFlag := flag.Int("k", 0, "Number of recommendations for -title (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := catalog.Load(ctx, catalog.Sources{
		MetadataPath: cfg.Data.MetadataPath,
		VectorsPath:  cfg.Data.VectorsPath,
		Table:        cfg.Data.Table,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load catalog")
	}

	if *checkFlag {
		logging.Info().Int("movies", store.RowCount()).Msg("Catalog OK, exiting")
		return
	}

	fetcher := letterboxd.NewCircuitBreakerClient(letterboxd.Config{
		BaseURL:         cfg.Letterboxd.BaseURL,
		Timeout:         cfg.Letterboxd.Timeout,
		MaxPages:        cfg.Letterboxd.MaxPages,
		UserAgent:       cfg.Letterboxd.UserAgent,
		BreakerFailures: cfg.Letterboxd.BreakerFailures,
		BreakerTimeout:  cfg.Letterboxd.BreakerTimeout,
	})
	svc := recommend.NewService(store, fetcher, history.Options{
		DedupeAcrossSeeds: cfg.Recommend.DedupeAcrossSeeds,
	})

	if *titleFlag != "" {
		k := *kFlag
		if k <= 0 {
			k = cfg.Recommend.DefaultK
		}
		if err := printRecommendations(ctx, svc, *titleFlag, k); err != nil {
			logging.Fatal().Err(err).Str("title", *titleFlag).Msg("Recommendation failed")
		}
		return
	}

	srv := server.New(cfg.Server, cfg.Recommend, svc)
	sup := server.NewSupervisor("reelmatch", cfg.Server.ShutdownTimeout)
	sup.Add(server.NewHTTPService(srv, cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", srv.Addr).Msg("Server listening")

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor stopped")
	}

	logging.Info().Msg("Goodbye")
}

func printRecommendations(ctx context.Context, svc *recommend.Service, title string, k int) error {
	results, err := svc.ByTitle(ctx, title, k)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
