package main

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/config"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/db"
)

// Prints a per-source ingest summary; quick sanity check after a crawl.
func main() {
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

	rows, err := pool.Query(ctx, `
		SELECT s.name,
			COUNT(t.id),
			COUNT(t.closing_at) FILTER (WHERE t.closing_at >= NOW()),
			COALESCE((SELECT COUNT(*) FROM documents d JOIN tenders t2 ON t2.id = d.tender_id WHERE t2.source_id = s.id), 0),
			COALESCE((SELECT COUNT(*) FROM contacts c JOIN tenders t2 ON t2.id = c.tender_id WHERE t2.source_id = s.id), 0),
			MAX(t.last_seen_at)
		FROM sources s
		LEFT JOIN tenders t ON t.source_id = s.id
		GROUP BY s.id, s.name
		ORDER BY s.name
	`)
	if err != nil {
		log.Fatal().Err(err).Msg("query failed")
	}
	defer rows.Close()

	w := table.NewWriter()
	w.SetOutputMirror(os.Stdout)
	w.AppendHeader(table.Row{"Source", "Tenders", "Open", "Documents", "Contacts", "Last Seen"})

	for rows.Next() {
		var name string
		var tenders, open, docs, contacts int
		var lastSeen *time.Time

		if err := rows.Scan(&name, &tenders, &open, &docs, &contacts, &lastSeen); err != nil {
			log.Error().Err(err).Msg("scan error")
			continue
		}

		seen := "never"
		if lastSeen != nil {
			seen = lastSeen.Format("2006-01-02 15:04:05")
		}
		w.AppendRow(table.Row{name, tenders, open, docs, contacts, seen})
	}
	w.Render()
}
