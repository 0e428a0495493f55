package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// ErrUserNotFound is returned by SavePreferences for unknown emails; the
// API maps it to a 404.
var ErrUserNotFound = errors.New("user not found")

type Store struct {
	pool *pgxpool.Pool

	mu        sync.RWMutex
	sourceIDs map[string]int64
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, sourceIDs: make(map[string]int64)}
}

type ListParams struct {
	Source        string
	Status        string
	Buyer         string
	Category      string
	Query         string
	ClosingFrom   *time.Time
	ClosingTo     *time.Time
	PublishedFrom *time.Time
	PublishedTo   *time.Time
	Limit         int
	Offset        int
	Sort          string
	Order         string
}

type ListResult struct {
	Results []models.TenderSummary `json:"results"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

// sortColumns is the allow-list; anything else is coerced to closing_at.
var sortColumns = map[string]bool{
	"closing_at":   true,
	"published_at": true,
	"id":           true,
}

// Normalize clamps paging and coerces the sort field onto the allow-list.
func (p *ListParams) Normalize() {
	if p.Limit < 1 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if !sortColumns[p.Sort] {
		p.Sort = "closing_at"
	}
	switch strings.ToLower(p.Order) {
	case "desc":
		p.Order = "DESC"
	default:
		p.Order = "ASC"
	}
}

const summaryCols = `t.id, s.name, t.external_id, t.title, t.category, t.location,
	t.buyer, t.status, t.published_at, t.closing_at, t.url`

func scanSummary(scan func(dest ...interface{}) error) (models.TenderSummary, error) {
	var ts models.TenderSummary
	var category, location, buyer, status, url *string

	err := scan(
		&ts.ID, &ts.Source, &ts.ExternalID, &ts.Title, &category, &location,
		&buyer, &status, &ts.PublishedAt, &ts.ClosingAt, &url,
	)
	if err != nil {
		return ts, err
	}

	ts.Category = deref(category)
	ts.Location = deref(location)
	ts.Buyer = deref(buyer)
	ts.Status = deref(status)
	ts.URL = deref(url)
	return ts, nil
}

func (s *Store) ListTenders(ctx context.Context, params ListParams) (*ListResult, error) {
	params.Normalize()

	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Source != "" {
		where += fmt.Sprintf(" AND s.name = $%d", argIdx)
		args = append(args, params.Source)
		argIdx++
	}
	if params.Status != "" {
		where += fmt.Sprintf(" AND t.status = $%d", argIdx)
		args = append(args, params.Status)
		argIdx++
	}
	if params.Buyer != "" {
		where += fmt.Sprintf(" AND t.buyer = $%d", argIdx)
		args = append(args, params.Buyer)
		argIdx++
	}
	if params.Category != "" {
		where += fmt.Sprintf(" AND t.category = $%d", argIdx)
		args = append(args, params.Category)
		argIdx++
	}
	if params.Query != "" {
		where += fmt.Sprintf(" AND t.search_vector @@ plainto_tsquery('english', $%d)", argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.ClosingFrom != nil {
		where += fmt.Sprintf(" AND t.closing_at >= $%d", argIdx)
		args = append(args, *params.ClosingFrom)
		argIdx++
	}
	if params.ClosingTo != nil {
		where += fmt.Sprintf(" AND t.closing_at <= $%d", argIdx)
		args = append(args, *params.ClosingTo)
		argIdx++
	}
	if params.PublishedFrom != nil {
		where += fmt.Sprintf(" AND t.published_at >= $%d", argIdx)
		args = append(args, *params.PublishedFrom)
		argIdx++
	}
	if params.PublishedTo != nil {
		where += fmt.Sprintf(" AND t.published_at <= $%d", argIdx)
		args = append(args, *params.PublishedTo)
		argIdx++
	}

	var total int
	countSQL := "SELECT COUNT(*) FROM tenders t JOIN sources s ON s.id = t.source_id " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	// Sort and order are validated identifiers at this point, never user
	// input verbatim.
	selectSQL := fmt.Sprintf(
		"SELECT %s FROM tenders t JOIN sources s ON s.id = t.source_id %s ORDER BY t.%s %s NULLS LAST, t.id ASC LIMIT $%d OFFSET $%d",
		summaryCols, where, params.Sort, params.Order, argIdx, argIdx+1,
	)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var results []models.TenderSummary
	for rows.Next() {
		ts, err := scanSummary(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		results = append(results, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	if results == nil {
		results = []models.TenderSummary{}
	}

	return &ListResult{
		Results: results,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

const tenderCols = `t.id, t.source_id, s.name, t.external_id, t.source_tender_id,
	t.title, t.description, t.category, t.location, t.buyer,
	t.procurement_method, t.procurement_method_details, t.status, t.tender_type,
	t.published_at, t.briefing_at, t.tender_start_at, t.closing_at,
	t.briefing_venue, t.briefing_compulsory, t.briefing_details,
	t.value_amount, t.value_currency,
	t.tender_box_address, t.target_audience, t.contract_type, t.project_type,
	t.queries_to, t.url, t.hash, t.last_seen_at`

func scanTender(scan func(dest ...interface{}) error) (models.Tender, error) {
	var t models.Tender
	var sourceTenderID, description, category, location, buyer *string
	var procMethod, procDetails, status, tenderType *string
	var venue, details, currency *string
	var boxAddress, audience, contractType, projectType, queriesTo, url *string

	err := scan(
		&t.ID, &t.SourceID, &t.Source, &t.ExternalID, &sourceTenderID,
		&t.Title, &description, &category, &location, &buyer,
		&procMethod, &procDetails, &status, &tenderType,
		&t.PublishedAt, &t.BriefingAt, &t.TenderStartAt, &t.ClosingAt,
		&venue, &t.BriefingCompulsory, &details,
		&t.ValueAmount, &currency,
		&boxAddress, &audience, &contractType, &projectType,
		&queriesTo, &url, &t.Hash, &t.LastSeenAt,
	)
	if err != nil {
		return t, err
	}

	t.SourceTenderID = deref(sourceTenderID)
	t.Description = deref(description)
	t.Category = deref(category)
	t.Location = deref(location)
	t.Buyer = deref(buyer)
	t.ProcurementMethod = deref(procMethod)
	t.ProcurementMethodDetails = deref(procDetails)
	t.Status = deref(status)
	t.TenderType = deref(tenderType)
	t.BriefingVenue = deref(venue)
	t.BriefingDetails = deref(details)
	t.ValueCurrency = deref(currency)
	t.TenderBoxAddress = deref(boxAddress)
	t.TargetAudience = deref(audience)
	t.ContractType = deref(contractType)
	t.ProjectType = deref(projectType)
	t.QueriesTo = deref(queriesTo)
	t.URL = deref(url)
	return t, nil
}

// GetTender returns the full record with documents and contacts embedded.
func (s *Store) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	sql := fmt.Sprintf(`
		SELECT %s
		FROM tenders t JOIN sources s ON s.id = t.source_id
		WHERE t.id = $1
	`, tenderCols)
	row := s.pool.QueryRow(ctx, sql, id)

	t, err := scanTender(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}

	if t.Documents, err = s.ListDocuments(ctx, id); err != nil {
		return nil, err
	}
	if t.Contacts, err = s.ListContacts(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) ListDocuments(ctx context.Context, tenderID int64) ([]models.Document, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, tender_id, url, name, mime_type, published_at FROM documents WHERE tender_id = $1 ORDER BY id",
		tenderID)
	if err != nil {
		return nil, fmt.Errorf("documents query failed: %w", err)
	}
	defer rows.Close()

	docs := []models.Document{}
	for rows.Next() {
		var d models.Document
		var name, mime *string
		if err := rows.Scan(&d.ID, &d.TenderID, &d.URL, &name, &mime, &d.PublishedAt); err != nil {
			return nil, fmt.Errorf("documents scan failed: %w", err)
		}
		d.Name = deref(name)
		d.MimeType = deref(mime)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Store) ListContacts(ctx context.Context, tenderID int64) ([]models.Contact, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, tender_id, name, email, phone FROM contacts WHERE tender_id = $1 ORDER BY id",
		tenderID)
	if err != nil {
		return nil, fmt.Errorf("contacts query failed: %w", err)
	}
	defer rows.Close()

	contacts := []models.Contact{}
	for rows.Next() {
		var c models.Contact
		var name, email, phone *string
		if err := rows.Scan(&c.ID, &c.TenderID, &name, &email, &phone); err != nil {
			return nil, fmt.Errorf("contacts scan failed: %w", err)
		}
		c.Name = deref(name)
		c.Email = deref(email)
		c.Phone = deref(phone)
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// SourceID resolves a source name to its id, caching per instance; the
// sources table is static reference data.
func (s *Store) SourceID(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	id, ok := s.sourceIDs[name]
	s.mu.RUnlock()
	if ok {
		return id, nil
	}

	if err := s.pool.QueryRow(ctx, "SELECT id FROM sources WHERE name = $1", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("unknown source %q: %w", name, err)
	}

	s.mu.Lock()
	s.sourceIDs[name] = id
	s.mu.Unlock()
	return id, nil
}

func (s *Store) GetSources(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT name FROM sources ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			sources = append(sources, name)
		}
	}
	return sources, rows.Err()
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders").Scan(&total)
	stats["total"] = total

	var open int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM tenders WHERE closing_at >= NOW()").Scan(&open)
	stats["open"] = open

	sourceCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, `
		SELECT s.name, COUNT(*) FROM tenders t
		JOIN sources s ON s.id = t.source_id
		GROUP BY s.name
	`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var name string
			var count int
			if scanErr := rows.Scan(&name, &count); scanErr == nil {
				sourceCounts[name] = count
			}
		}
	}
	stats["by_source"] = sourceCounts

	return stats, nil
}

// SavePreferences replaces the user's category rows and recreates one
// subscription per category with a {"category":[c]} filter attribute.
func (s *Store) SavePreferences(ctx context.Context, email string, categories []string, topic string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var userID int64
	err = tx.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", email).Scan(&userID)
	if err == pgx.ErrNoRows {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("user lookup failed: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM user_preferences WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clear preferences failed: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM user_subscriptions WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("clear subscriptions failed: %w", err)
	}

	for _, category := range categories {
		if _, err := tx.Exec(ctx,
			"INSERT INTO user_preferences (user_id, tender_category) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			userID, category); err != nil {
			return fmt.Errorf("insert preference failed: %w", err)
		}

		filter, _ := json.Marshal(map[string][]string{"category": {category}})
		if _, err := tx.Exec(ctx,
			"INSERT INTO user_subscriptions (user_id, topic, filter) VALUES ($1, $2, $3)",
			userID, topic, filter); err != nil {
			return fmt.Errorf("insert subscription failed: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
