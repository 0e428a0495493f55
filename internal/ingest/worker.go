package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/publish"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

// batchSize is the number of tenders upserted per transaction.
const batchSize = 100

// BatchTx is one open upsert transaction. UpsertTender replaces the
// tender's documents and contacts inside the same transaction; a per-row
// failure leaves the transaction usable for the remaining rows.
type BatchTx interface {
	UpsertTender(ctx context.Context, t *models.Tender) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TenderStore opens upsert batches against the relational store.
type TenderStore interface {
	BeginBatch(ctx context.Context) (BatchTx, error)
}

// Worker consumes object-created events, normalizes the referenced raw
// payloads and upserts them. Notifications go out only after every batch
// has committed.
type Worker struct {
	store       blob.Store
	tenders     TenderStore
	publisher   publish.Publisher
	normalizers map[string]Normalizer
	log         zerolog.Logger
}

func NewWorker(store blob.Store, tenders TenderStore, publisher publish.Publisher, loc *time.Location, log zerolog.Logger) *Worker {
	return &Worker{
		store:     store,
		tenders:   tenders,
		publisher: publisher,
		normalizers: map[string]Normalizer{
			"eskom":    &EskomNormalizer{Loc: loc},
			"sanral":   &SanralNormalizer{Loc: loc},
			"transnet": &TransnetNormalizer{Loc: loc},
			"etenders": &EtendersNormalizer{Loc: loc},
		},
		log: log,
	}
}

// Run polls the consumer until the context is cancelled. Handler errors
// nack the delivery so the queue redelivers; the upsert's idempotency key
// makes reprocessing safe.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer, idle time.Duration) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		delivery, err := consumer.Receive(ctx)
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		if delivery == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(idle):
			}
			continue
		}

		if err := w.HandleEvent(ctx, delivery.Body); err != nil {
			w.log.Error().Err(err).Msg("event failed, releasing for redelivery")
			if nerr := delivery.Nack(ctx); nerr != nil {
				w.log.Error().Err(nerr).Msg("nack failed")
			}
			continue
		}
		if err := delivery.Ack(ctx); err != nil {
			w.log.Error().Err(err).Msg("ack failed")
		}
	}
}

// HandleEvent processes one queue event. Malformed envelopes and payloads
// are logged and dropped; transient failures return an error so the
// delivery is retried.
func (w *Worker) HandleEvent(ctx context.Context, body []byte) error {
	refs, err := queue.DecodeEnvelope(body)
	if err != nil {
		w.log.Error().Err(err).Msg("dropping malformed event")
		return nil
	}

	var intents []models.Tender
	for _, ref := range refs {
		if err := w.processObject(ctx, ref.Key, &intents); err != nil {
			return err
		}
	}

	// Every batch is durable at this point. Publish failures are logged
	// only; subscribers tolerate missed or duplicate notifications.
	for _, t := range intents {
		if err := w.publisher.Publish(ctx, publish.NewTenderMessage(t)); err != nil {
			w.log.Error().Err(err).Str("external_id", t.ExternalID).Msg("publish failed")
		}
	}
	return nil
}

func (w *Worker) processObject(ctx context.Context, key string, intents *[]models.Tender) error {
	prefix, _, ok := strings.Cut(key, "/")
	normalizer := w.normalizers[prefix]
	if !ok || normalizer == nil {
		w.log.Warn().Str("key", key).Msg("unknown source prefix, skipping")
		return nil
	}

	raw, err := w.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", key, err)
	}

	tenders, err := normalizer.Normalize(raw)
	if err != nil {
		w.log.Error().Err(err).Str("key", key).Msg("dropping malformed payload")
		return nil
	}
	w.log.Info().Str("key", key).Int("items", len(tenders)).Msg("normalized")

	for start := 0; start < len(tenders); start += batchSize {
		end := start + batchSize
		if end > len(tenders) {
			end = len(tenders)
		}
		if err := w.upsertBatch(ctx, tenders[start:end], intents); err != nil {
			return err
		}
	}
	return nil
}

// upsertBatch runs one transaction over up to batchSize tenders. A failed
// row is logged and skipped; the rest of the batch still commits. Publish
// intents are buffered and only surface to the caller once the commit
// succeeds.
func (w *Worker) upsertBatch(ctx context.Context, tenders []models.Tender, intents *[]models.Tender) error {
	tx, err := w.tenders.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	var committed []models.Tender
	for i := range tenders {
		if err := tx.UpsertTender(ctx, &tenders[i]); err != nil {
			w.log.Error().Err(err).
				Str("source", tenders[i].Source).
				Str("external_id", tenders[i].ExternalID).
				Msg("row failed, continuing batch")
			continue
		}
		committed = append(committed, tenders[i])
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("commit batch: %w", err)
	}
	*intents = append(*intents, committed...)
	return nil
}
