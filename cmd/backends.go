package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/face-swap/internal/config"
	"github.com/kozaktomas/face-swap/internal/database"
	"github.com/kozaktomas/face-swap/internal/database/postgres"
	"github.com/kozaktomas/face-swap/internal/engine"
	"github.com/kozaktomas/face-swap/internal/media"
	"github.com/kozaktomas/face-swap/internal/staging"
	"github.com/kozaktomas/face-swap/internal/swap"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openFaceStore selects the face store: PostgreSQL when DATABASE_URL is set,
// otherwise the gob file at FACE_STORE_PATH, otherwise none.
func openFaceStore(ctx context.Context, cfg *config.Config) (database.FaceStore, io.Closer, error) {
	if cfg.Database.URL != "" {
		pool, err := postgres.Open(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		log.Info().Msg("using PostgreSQL face store")
		return postgres.NewFaceRepository(pool), pool, nil
	}
	if cfg.Database.FaceStorePath != "" {
		store, err := database.OpenFileFaceStore(cfg.Database.FaceStorePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open face store: %w", err)
		}
		log.Info().Str("path", store.Path()).Msg("using file face store")
		return store, nopCloser{}, nil
	}
	return nil, nopCloser{}, nil
}

// requireFaceStore is openFaceStore for commands that cannot run without one.
func requireFaceStore(ctx context.Context, cfg *config.Config) (database.FaceStore, io.Closer, error) {
	store, closer, err := openFaceStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, errors.New("no face store configured: set DATABASE_URL or FACE_STORE_PATH")
	}
	return store, closer, nil
}

// newOrchestrator wires the engine client and staging area into an orchestrator.
func newOrchestrator(cfg *config.Config, store database.FaceStore, isolate bool) (*swap.Orchestrator, *engine.HTTPClient) {
	client := engine.NewHTTPClient(cfg.Engine.URL, store, log.Logger)
	area := staging.New(cfg.Swap.StagingDir, cfg.Swap.MinFreeBytes())

	orch := swap.New(client, area, swap.Options{
		OutputDir:     cfg.Swap.OutputDir,
		EnhanceModel:  cfg.Engine.EnhanceModel,
		FaceLabel:     cfg.Swap.FaceLabel,
		IsolateLabels: isolate,
		PersistFaces:  cfg.Swap.PersistFaces && store != nil,
		Timeout:       cfg.Swap.RequestTimeout,
		JPEGQuality:   cfg.Swap.JPEGQuality,
		VerifyVideos:  cfg.Swap.VerifyVideos,
	}, log.Logger)

	if cfg.Swap.VerifyVideos {
		prober, err := media.NewProber()
		if err != nil {
			log.Warn().Err(err).Msg("video verification disabled")
		} else {
			orch.SetVerifier(prober)
		}
	}
	return orch, client
}
