package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/api"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/eventbus"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/ingest"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/publish"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	bus := eventbus.New()
	defer bus.Close()

	// RUN_WORKER embeds the ingest worker so a single process serves the
	// API and feeds the websocket stream from its own commits.
	if os.Getenv("RUN_WORKER") == "true" {
		store, err := blob.FromConfig(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("object store init failed")
		}

		worker := ingest.NewWorker(
			store,
			batchOpener{db.NewStore(pool)},
			publish.NewBusPublisher(bus),
			cfg.Location(),
			log.With().Str("component", "worker").Logger(),
		)
		consumer := queue.NewPGQueue(pool, cfg.IngestQueue)
		go func() {
			if err := worker.Run(ctx, consumer, 5*time.Second); err != nil {
				log.Error().Err(err).Msg("worker stopped")
			}
		}()
	}

	srv := api.NewServer(pool, bus, cfg)
	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := srv.Start(cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

// batchOpener narrows *db.Store to the worker's store interface.
type batchOpener struct {
	store *db.Store
}

func (b batchOpener) BeginBatch(ctx context.Context) (ingest.BatchTx, error) {
	return b.store.BeginBatch(ctx)
}
