package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// eskomRecord is one row scraped from the Eskom tender bulletin.
type eskomRecord struct {
	TenderID         string `json:"TenderID"`
	EnquiryNumber    string `json:"enquiryNumber"`
	Title            string `json:"title"`
	ScopeDetails     string `json:"scopeDetails"`
	DT               string `json:"dt"`
	TenderBoxAddress string `json:"tenderBoxAddress"`
	TargetAudience   string `json:"targetAudience"`
	Published        string `json:"published"`
	Closing          string `json:"closing"`
	ReadMore         string `json:"readMore"`
	DownloadLink     string `json:"downloadLink"`
}

// EskomNormalizer handles the flat bulletin rows. Category comes from the
// "dt" column and location from the tender box address.
type EskomNormalizer struct {
	Loc *time.Location
}

func (n *EskomNormalizer) Source() string { return "eskom" }

func (n *EskomNormalizer) Normalize(raw []byte) ([]models.Tender, error) {
	var records []eskomRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("eskom payload: %w", err)
	}

	tenders := make([]models.Tender, 0, len(records))
	for _, rec := range records {
		externalID := SquashWhitespace(rec.TenderID)
		if externalID == "" {
			continue
		}

		t := models.Tender{
			Source:           "eskom",
			ExternalID:       externalID,
			SourceTenderID:   SquashWhitespace(rec.EnquiryNumber),
			Title:            SquashWhitespace(rec.Title),
			Description:      SquashWhitespace(CleanHTMLish(rec.ScopeDetails)),
			Category:         SquashWhitespace(rec.DT),
			Location:         SquashWhitespace(rec.TenderBoxAddress),
			TenderBoxAddress: SquashWhitespace(rec.TenderBoxAddress),
			TargetAudience:   SquashWhitespace(rec.TargetAudience),
			Buyer:            "Eskom",
			PublishedAt:      ParseEskomDate(rec.Published, n.Loc),
			ClosingAt:        ParseEskomDate(rec.Closing, n.Loc),
			URL:              SquashWhitespace(rec.ReadMore),
		}
		if t.Title == "" {
			t.Title = t.Description
		}

		if link := SquashWhitespace(rec.DownloadLink); link != "" {
			t.Documents = append(t.Documents, models.Document{URL: link})
		}

		t.Hash = contentHash(map[string]any{
			"source":       "eskom",
			"external_id":  t.ExternalID,
			"title":        t.Title,
			"description":  t.Description,
			"category":     t.Category,
			"location":     t.Location,
			"published_at": isoOrNull(t.PublishedAt),
			"closing_at":   isoOrNull(t.ClosingAt),
			"url":          t.URL,
			"download":     SquashWhitespace(rec.DownloadLink),
		})

		tenders = append(tenders, t)
	}
	return tenders, nil
}
