package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/fetch"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/ingest"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

// Crawls the OCDS API, drops raw pages into the object store and queues
// ingest events for the worker.
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

	store, err := blob.FromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("object store init failed")
	}

	registry, err := ingest.LoadRegistry("internal/ingest/config/sources.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load source registry")
	}
	source, err := registry.ByID("etenders")
	if err != nil {
		log.Fatal().Err(err).Msg("etenders missing from registry")
	}

	timeout := 45 * time.Second
	if source.Fetch.TimeoutSeconds > 0 {
		timeout = time.Duration(source.Fetch.TimeoutSeconds) * time.Second
	}

	dateFrom := os.Getenv("DATE_FROM")
	if dateFrom == "" {
		dateFrom = time.Now().AddDate(0, -3, 0).Format("2006-01-02")
	}
	dateTo := os.Getenv("DATE_TO")
	if dateTo == "" {
		dateTo = time.Now().Format("2006-01-02")
	}

	interval := time.Duration(cfg.ThrottleMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}

	fetcher := &fetch.Fetcher{
		BaseURL:    source.BaseURL,
		PageSize:   cfg.PageSize,
		MaxPages:   cfg.MaxPages,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Concurrent: cfg.UseConcurrent,
		Client:     &http.Client{Timeout: timeout},
		Store:      store,
		Bucket:     cfg.Bucket,
		Queue:      queue.NewPGQueue(pool, cfg.IngestQueue),
		Limiter:    rate.NewLimiter(rate.Every(interval), 1),
		Log:        log.With().Str("component", "fetcher").Str("run_id", uuid.New().String()[:8]).Logger(),
	}

	invoker := &fetch.GoInvoker{Fetcher: fetcher}
	fetcher.Invoker = invoker

	summary, err := fetcher.Run(ctx, fetch.State{StartPage: 1})
	if err != nil {
		log.Fatal().Err(err).Msg("crawl failed")
	}
	invoker.WG.Wait()

	log.Info().
		Int("pages_saved", summary.PagesSaved).
		Int("total_saved", summary.TotalSaved).
		Ints("failed_pages", summary.FailedPages).
		Bool("continued", summary.Continued).
		Msg("crawl finished")
}
