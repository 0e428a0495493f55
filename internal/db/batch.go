package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// Batch is one open ingest transaction. Each UpsertTender runs inside a
// savepoint so a failed row rolls back alone and the batch keeps going.
type Batch struct {
	store *Store
	tx    pgx.Tx
}

// BeginBatch opens a transaction for a batch of upserts.
func (s *Store) BeginBatch(ctx context.Context) (*Batch, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin failed: %w", err)
	}
	return &Batch{store: s, tx: tx}, nil
}

const upsertTenderSQL = `
	INSERT INTO tenders (
		source_id, external_id, source_tender_id,
		title, description, category, location, buyer,
		procurement_method, procurement_method_details, status, tender_type,
		published_at, briefing_at, tender_start_at, closing_at,
		briefing_venue, briefing_compulsory, briefing_details,
		value_amount, value_currency,
		tender_box_address, target_audience, contract_type, project_type,
		queries_to, url, hash
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
	)
	ON CONFLICT (source_id, external_id) DO UPDATE SET
		source_tender_id = EXCLUDED.source_tender_id,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		category = EXCLUDED.category,
		location = EXCLUDED.location,
		buyer = EXCLUDED.buyer,
		procurement_method = EXCLUDED.procurement_method,
		procurement_method_details = EXCLUDED.procurement_method_details,
		status = EXCLUDED.status,
		tender_type = EXCLUDED.tender_type,
		published_at = EXCLUDED.published_at,
		briefing_at = EXCLUDED.briefing_at,
		tender_start_at = EXCLUDED.tender_start_at,
		closing_at = EXCLUDED.closing_at,
		briefing_venue = EXCLUDED.briefing_venue,
		briefing_compulsory = EXCLUDED.briefing_compulsory,
		briefing_details = EXCLUDED.briefing_details,
		value_amount = EXCLUDED.value_amount,
		value_currency = EXCLUDED.value_currency,
		tender_box_address = EXCLUDED.tender_box_address,
		target_audience = EXCLUDED.target_audience,
		contract_type = EXCLUDED.contract_type,
		project_type = EXCLUDED.project_type,
		queries_to = EXCLUDED.queries_to,
		url = EXCLUDED.url,
		hash = EXCLUDED.hash,
		last_seen_at = NOW()
	RETURNING id
`

// UpsertTender writes the tender keyed by (source_id, external_id) and
// replaces its documents and contacts wholesale. On success t.ID is set.
func (b *Batch) UpsertTender(ctx context.Context, t *models.Tender) error {
	sourceID, err := b.store.SourceID(ctx, t.Source)
	if err != nil {
		return err
	}
	t.SourceID = sourceID

	// Savepoint; a failed row must not poison the enclosing transaction.
	sp, err := b.tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("savepoint failed: %w", err)
	}

	if err := upsertOne(ctx, sp, t); err != nil {
		_ = sp.Rollback(ctx)
		return err
	}
	return sp.Commit(ctx)
}

func upsertOne(ctx context.Context, tx pgx.Tx, t *models.Tender) error {
	err := tx.QueryRow(ctx, upsertTenderSQL,
		t.SourceID, t.ExternalID, nullString(t.SourceTenderID),
		t.Title, nullString(t.Description), nullString(t.Category),
		nullString(t.Location), nullString(t.Buyer),
		nullString(t.ProcurementMethod), nullString(t.ProcurementMethodDetails),
		nullString(t.Status), nullString(t.TenderType),
		t.PublishedAt, t.BriefingAt, t.TenderStartAt, t.ClosingAt,
		nullString(t.BriefingVenue), t.BriefingCompulsory, nullString(t.BriefingDetails),
		t.ValueAmount, nullString(t.ValueCurrency),
		nullString(t.TenderBoxAddress), nullString(t.TargetAudience),
		nullString(t.ContractType), nullString(t.ProjectType),
		nullString(t.QueriesTo), nullString(t.URL), t.Hash,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("upsert %s/%s failed: %w", t.Source, t.ExternalID, err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM documents WHERE tender_id = $1", t.ID); err != nil {
		return fmt.Errorf("clear documents failed: %w", err)
	}
	for i := range t.Documents {
		doc := &t.Documents[i]
		doc.TenderID = t.ID
		if err := tx.QueryRow(ctx,
			"INSERT INTO documents (tender_id, url, name, mime_type, published_at) VALUES ($1, $2, $3, $4, $5) RETURNING id",
			t.ID, doc.URL, nullString(doc.Name), nullString(doc.MimeType), doc.PublishedAt,
		).Scan(&doc.ID); err != nil {
			return fmt.Errorf("insert document failed: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, "DELETE FROM contacts WHERE tender_id = $1", t.ID); err != nil {
		return fmt.Errorf("clear contacts failed: %w", err)
	}
	for i := range t.Contacts {
		c := &t.Contacts[i]
		c.TenderID = t.ID
		if err := tx.QueryRow(ctx,
			"INSERT INTO contacts (tender_id, name, email, phone) VALUES ($1, $2, $3, $4) RETURNING id",
			t.ID, nullString(c.Name), nullString(c.Email), nullString(c.Phone),
		).Scan(&c.ID); err != nil {
			return fmt.Errorf("insert contact failed: %w", err)
		}
	}

	return nil
}

func (b *Batch) Commit(ctx context.Context) error {
	return b.tx.Commit(ctx)
}

func (b *Batch) Rollback(ctx context.Context) error {
	return b.tx.Rollback(ctx)
}
