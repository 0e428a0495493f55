package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/ingest"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/publish"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

// Standalone ingest worker: polls the queue, normalizes, upserts. Runs
// alongside the server for horizontal scaling; notifications go to the log
// since there are no in-process subscribers here.
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	store, err := blob.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store init failed")
	}

	worker := ingest.NewWorker(
		store,
		batchOpener{db.NewStore(pool)},
		&publish.LogPublisher{Log: log.With().Str("component", "publisher").Logger()},
		cfg.Location(),
		log.With().Str("component", "worker").Logger(),
	)

	consumer := queue.NewPGQueue(pool, cfg.IngestQueue)
	log.Info().Str("queue", cfg.IngestQueue).Msg("worker starting")
	if err := worker.Run(ctx, consumer, 5*time.Second); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("worker exited")
	}
}

type batchOpener struct {
	store *db.Store
}

func (b batchOpener) BeginBatch(ctx context.Context) (ingest.BatchTx, error) {
	return b.store.BeginBatch(ctx)
}
