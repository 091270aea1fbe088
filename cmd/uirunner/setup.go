package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/config"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/logger"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/storage"
)

func loadConfig() (*config.Config, logger.Logger, error) {
	cfg, err := config.NewLoader(configFile).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, newLogger(cfg), nil
}

func newLogger(cfg *config.Config) logger.Logger {
	return logger.NewLogrusLogger(
		cfg.GetOr(config.KeyLogLevel, "info"),
		cfg.GetOr(config.KeyLogFormat, "json"),
	)
}

// openHistory returns a nil store and a no-op closer when history is off.
func openHistory(ctx context.Context, cfg *config.Config, log logger.Logger) (history.Store, func(), error) {
	enabled, err := cfg.HistoryEnabled()
	if err != nil {
		return nil, func() {}, err
	}
	if !enabled {
		return nil, func() {}, nil
	}

	hcfg := history.ConfigFrom(cfg)
	db, err := history.Open(hcfg)
	if err != nil {
		return nil, func() {}, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to get database instance: %w", err)
	}
	closer := func() { sqlDB.Close() }

	if err := history.Migrate(db, hcfg.Driver); err != nil {
		closer()
		return nil, func() {}, err
	}

	log.Info(ctx, "history store ready", map[string]interface{}{
		"driver": hcfg.Driver,
	})
	return history.NewSQLStore(db, log), closer, nil
}

// artifactStore returns the remote mirror for run artifacts, or nil when
// artifacts stay on local disk.
func artifactStore(cfg *config.Config) (storage.Store, error) {
	kind := strings.ToLower(cfg.GetOr(config.KeyStorageType, "local"))
	if kind == "local" || kind == "" {
		return nil, nil
	}
	return storage.New(kind, storage.Options{
		Bucket: cfg.GetOr(config.KeyS3Bucket, ""),
		Region: cfg.GetOr(config.KeyS3Region, ""),
	})
}

// reportStore is what the server reads reports from. Locally that is the
// parent of the report folder, so keys match those published to S3 and
// screenshot links inside a report resolve.
func reportStore(cfg *config.Config) (storage.Store, error) {
	remote, err := artifactStore(cfg)
	if err != nil || remote != nil {
		return remote, err
	}
	folder, err := cfg.ReportFolder()
	if err != nil {
		return nil, err
	}
	return storage.NewLocalStore(filepath.Dir(filepath.Clean(folder)))
}
