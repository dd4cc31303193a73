package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formstate/pkg/availability"
	"github.com/goliatone/go-formstate/pkg/config"
)

// buildChecker picks the username directory from cfg and puts the result
// cache in front of it.
func buildChecker(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (availability.Checker, func(), error) {
	var (
		checker availability.Checker
		closeFn = func() {}
	)
	switch cfg.Backend() {
	case config.BackendHTTP:
		remote, err := availability.NewHTTPChecker(cfg.AvailabilityURL,
			availability.WithRetries(cfg.RetryMax),
			availability.WithHTTPLogger(log),
		)
		if err != nil {
			return nil, nil, err
		}
		checker = remote
	case config.BackendSQL:
		db, err := sql.Open("sqlite", cfg.AvailabilityDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open username directory: %w", err)
		}
		// A single connection keeps ":memory:" databases shared.
		db.SetMaxOpenConns(1)
		if err := availability.EnsureDirectory(ctx, db, cfg.TakenUsernames); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		directory, err := availability.NewSQLChecker(db, "usernames", "username")
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		checker = directory
		closeFn = func() { _ = db.Close() }
	default:
		checker = availability.NewStatic(cfg.TakenUsernames, availability.WithLatency(cfg.AvailabilityLatency))
	}
	log.Debugw("availability checker ready", "backend", cfg.Backend(), "cacheSize", cfg.CacheSize, "cacheTTL", cfg.CacheTTL)

	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		checker = availability.NewCached(checker, cfg.CacheSize, cfg.CacheTTL)
	}
	return checker, closeFn, nil
}
