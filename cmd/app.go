package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-registry/internal/config"
	"github.com/kozaktomas/face-registry/internal/faceapi"
	"github.com/kozaktomas/face-registry/internal/logging"
	"github.com/kozaktomas/face-registry/internal/registry"
	"github.com/kozaktomas/face-registry/internal/store"
	"github.com/kozaktomas/face-registry/internal/store/jsonfile"
	"github.com/kozaktomas/face-registry/internal/store/postgres"
	"github.com/kozaktomas/face-registry/internal/store/sqlstore"
	"github.com/rs/zerolog"
)

// app holds everything a command needs to talk to the registry.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *registry.Service
	close    func() error
}

func newLogger(cfg *config.Config) (zerolog.Logger, error) {
	logger, err := logging.NewLogger(logging.Config{
		Format: cfg.Log.Format,
		Level:  cfg.Log.Level,
		Output: os.Stderr,
	})
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("configuring logger: %w", err)
	}
	return logger, nil
}

// openStores opens the pipeline stores of the configured backend.
func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (embedding, verification store.Store, closeFn func() error, err error) {
	switch cfg.Storage.Backend {
	case "json":
		emb, err := jsonfile.Open(cfg.Storage.EmbeddingFile)
		if err != nil {
			return nil, nil, nil, err
		}
		ver, err := jsonfile.Open(cfg.Storage.VerificationFile)
		if err != nil {
			return nil, nil, nil, err
		}
		return emb, ver, func() error { return errors.Join(emb.Close(), ver.Close()) }, nil

	case "sqlite":
		db, err := sqlstore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return db.EmbeddingStore(), db.VerificationStore(), db.Close, nil

	case "mysql":
		db, err := sqlstore.OpenMySQL(&cfg.Database)
		if err != nil {
			return nil, nil, nil, err
		}
		return db.EmbeddingStore(), db.VerificationStore(), db.Close, nil

	case "postgres":
		if cfg.Database.URL == "" {
			return nil, nil, nil, errors.New("DATABASE_URL environment variable is required")
		}
		pool, err := postgres.Open(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return postgres.NewEmbeddingStore(pool), postgres.NewVerificationStore(pool), pool.Close, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown STORE_BACKEND %q (use json, sqlite, mysql or postgres)", cfg.Storage.Backend)
}

// newApp loads the configuration and wires the registry service.
func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	embStore, verStore, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client := faceapi.NewClient(cfg.FaceAPI.URL)
	models := cfg.Matching.Models

	embMatcher, err := registry.NewEmbeddingMatcher(client, models.Embedding.Metric, models.Embedding.Threshold)
	if err != nil {
		closeStores()
		return nil, fmt.Errorf("EMBEDDING_METRIC: %w", err)
	}
	verMatcher := registry.NewVerificationMatcher(client, client, models.Verification.Threshold, cfg.Matching.VerificationRequireFace)

	svc := registry.NewService(
		registry.Pipeline{
			Matcher: embMatcher,
			Store:   embStore,
			Images:  registry.NewImageDir(cfg.Storage.EmbeddingImagesDir),
		},
		registry.Pipeline{
			Matcher: verMatcher,
			Store:   verStore,
			Images:  registry.NewImageDir(cfg.Storage.VerificationImagesDir),
		},
		registry.Options{
			Logger:       logger,
			MaxImageSize: cfg.Matching.MaxImageSize,
			Metric:       models.Embedding.Metric,
		},
	)

	logger.Debug().
		Str("backend", cfg.Storage.Backend).
		Str("face_api", client.BaseURL()).
		Float64("embedding_threshold", models.Embedding.Threshold).
		Float64("verification_threshold", models.Verification.Threshold).
		Msg("registry ready")

	return &app{cfg: cfg, logger: logger, registry: svc, close: closeStores}, nil
}
