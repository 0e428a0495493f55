package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

// Drops a local scraper dump into the object store and enqueues the
// ingest event, exactly as the scrapers would. Useful for replaying a
// payload against a dev database.
func main() {
	source := flag.String("source", "", "source prefix (eskom, sanral, transnet, etenders)")
	file := flag.String("file", "", "path to the raw JSON payload")
	flag.Parse()

	if *source == "" || *file == "" {
		log.Fatal().Msg("both -source and -file are required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read payload")
	}

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

	store, err := blob.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store init failed")
	}

	key := fmt.Sprintf("%s/%s-%d.json", *source,
		filepath.Base((*file)[:len(*file)-len(filepath.Ext(*file))]),
		time.Now().UnixMilli())
	if err := store.Put(ctx, key, data, map[string]string{"manual": "true"}); err != nil {
		log.Fatal().Err(err).Msg("failed to store payload")
	}

	event, err := queue.NewEnvelope(cfg.Bucket, key)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build event")
	}
	if err := queue.NewPGQueue(pool, cfg.IngestQueue).Enqueue(ctx, event); err != nil {
		log.Fatal().Err(err).Msg("failed to enqueue event")
	}

	log.Info().Str("key", key).Msg("payload queued for ingest")
}
