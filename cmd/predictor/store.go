package main

import (
	"log/slog"

	"github.com/HatiCode/gradecast/cmd/predictor/config"
	"github.com/HatiCode/gradecast/pkg/storage"
)

// bundleSource is the artifact storage backend selected by configuration.
type bundleSource struct {
	store storage.Store
	close func() error
}

// openStore creates the storage backend selected by cfg.Storage.
func openStore(cfg *config.Config, logger *slog.Logger) (*bundleSource, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		logger.Info("using redis artifact storage",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
		)
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, 0)
		if err != nil {
			return nil, err
		}
		return &bundleSource{
			store: rs,
			close: rs.Close,
		}, nil

	default:
		logger.Info("using file artifact storage", "dir", cfg.ArtifactDir)
		fs, err := storage.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return nil, err
		}
		return &bundleSource{
			store: fs,
			close: func() error { return nil },
		}, nil
	}
}
