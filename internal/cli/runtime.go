package cli

import (
	"context"
	"fmt"
	"log/slog"

	"modlog-archive/internal/config"
	"modlog-archive/internal/db"
	"modlog-archive/internal/ingest"
	"modlog-archive/internal/logging"
	"modlog-archive/internal/models"
	"modlog-archive/internal/redis"
	"modlog-archive/internal/resolver"
	"modlog-archive/internal/storage"
	"modlog-archive/internal/storage/memory"
	"modlog-archive/internal/storage/postgres"
)

// runtime bundles the wired-up stack for one command invocation.
type runtime struct {
	cfg      config.Config
	log      *slog.Logger
	store    storage.Store
	pipeline *ingest.Pipeline
	cleanup  func()
}

// setup builds logger, store, resolver and pipeline from the environment.
// With dryRun the store is in-memory and no database is touched.
func setup(ctx context.Context, dryRun bool) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		if !dryRun {
			return nil, err
		}
		// dry runs work without a database
		cfg = config.Config{LogLevel: "info"}
	}

	log := logging.New(cfg.LogLevel)

	var (
		store   storage.Store
		rdb     *redis.Client
		cleanup = func() {}
	)

	if dryRun {
		store = memory.New()
	} else {
		dbConn, err := db.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		store = postgres.New(dbConn)

		if cfg.RedisDSN != "" {
			rdb, err = redis.New(cfg.RedisDSN)
			if err != nil {
				log.Warn("redis_unavailable", "error", err)
				rdb = nil
			}
		}

		cleanup = func() {
			if rdb != nil {
				_ = rdb.Close()
			}
			dbConn.Close()
		}
	}

	res := resolver.New(log, store, resolver.LevenshteinScorer{}, resolver.Options{
		FuzzyEnabled: cfg.FuzzyMatchEnabled,
		Threshold:    cfg.FuzzyThreshold,
		Margin:       cfg.FuzzyMargin,
	})

	return &runtime{
		cfg:      cfg,
		log:      log,
		store:    store,
		pipeline: ingest.New(log, store, res, rdb),
		cleanup:  cleanup,
	}, nil
}

func printSummary(s models.Summary) {
	fmt.Printf("parsed:              %d\n", s.Parsed)
	fmt.Printf("malformed timestamp: %d\n", s.MalformedTimestamp)
	fmt.Printf("unknown ignored:     %d\n", s.UnknownIgnored)
	fmt.Printf("duplicates:          %d\n", s.Duplicates)
	fmt.Printf("new players:         %d\n", s.NewPlayers)
	fmt.Printf("updated aliases:     %d\n", s.UpdatedAliases)
	fmt.Printf("storage failures:    %d\n", s.StorageFailures)
	for _, f := range s.Failures {
		fmt.Printf("  failed: %s (%s)\n", f.RawText, f.Reason)
	}
}
