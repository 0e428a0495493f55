package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// transnetRecord is one Transnet e-tender row. The list view carries a
// summary; the scraped detail page, when present, repeats the fields with
// richer values and adds the document list.
type transnetRecord struct {
	transnetFields
	Details *transnetDetails `json:"details"`
}

type transnetFields struct {
	TenderNumber      string `json:"tenderNumber"`
	Title             string `json:"title"`
	Description       string `json:"description"`
	TenderCategory    string `json:"tenderCategory"`
	TenderType        string `json:"tenderType"`
	LocationOfService string `json:"locationOfService"`
	Institution       string `json:"institution"`
	Status            string `json:"status"`
	PublishedDate     string `json:"publishedDate"`
	OpeningDate       string `json:"openingDate"`
	BriefingDate      string `json:"briefingDate"`
	BriefingVenue     string `json:"briefingVenue"`
	ClosingDate       string `json:"closingDate"`
	ContactPerson     string `json:"contactPerson"`
	ContactEmail      string `json:"contactEmail"`
	ContactNumber     string `json:"contactNumber"`
	URL               string `json:"url"`
}

type transnetDetails struct {
	transnetFields
	Documents []struct {
		URL      string `json:"url"`
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
	} `json:"documents"`
}

// TransnetNormalizer prefers the detail-page fields over the list summary.
type TransnetNormalizer struct {
	Loc *time.Location
}

func (n *TransnetNormalizer) Source() string { return "transnet" }

func (n *TransnetNormalizer) Normalize(raw []byte) ([]models.Tender, error) {
	var records []transnetRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("transnet payload: %w", err)
	}

	tenders := make([]models.Tender, 0, len(records))
	for _, rec := range records {
		f := rec.transnetFields
		if rec.Details != nil {
			f = mergeTransnet(f, rec.Details.transnetFields)
		}

		externalID := SquashWhitespace(f.TenderNumber)
		if externalID == "" {
			continue
		}

		buyer := SquashWhitespace(f.Institution)
		if buyer == "" {
			buyer = "Transnet"
		}

		t := models.Tender{
			Source:         "transnet",
			ExternalID:     externalID,
			SourceTenderID: externalID,
			Title:          SquashWhitespace(f.Title),
			Description:    SquashWhitespace(CleanHTMLish(f.Description)),
			Category:       SquashWhitespace(f.TenderCategory),
			TenderType:     SquashWhitespace(f.TenderType),
			Location:       SquashWhitespace(f.LocationOfService),
			Buyer:          buyer,
			Status:         SquashWhitespace(f.Status),
			BriefingVenue:  SquashWhitespace(f.BriefingVenue),
			PublishedAt:    ParseTransnetDate(f.PublishedDate, n.Loc),
			TenderStartAt:  ParseTransnetDate(f.OpeningDate, n.Loc),
			BriefingAt:     ParseTransnetDate(f.BriefingDate, n.Loc),
			ClosingAt:      ParseTransnetDate(f.ClosingDate, n.Loc),
			URL:            SquashWhitespace(f.URL),
		}

		if rec.Details != nil {
			for _, doc := range rec.Details.Documents {
				url := SquashWhitespace(doc.URL)
				if url == "" {
					continue
				}
				t.Documents = append(t.Documents, models.Document{
					URL:      url,
					Name:     SquashWhitespace(doc.Name),
					MimeType: SquashWhitespace(doc.MimeType),
				})
			}
		}

		name := SquashWhitespace(f.ContactPerson)
		email := SquashWhitespace(f.ContactEmail)
		if name != "" || email != "" {
			t.Contacts = append(t.Contacts, models.Contact{
				Name:  name,
				Email: email,
				Phone: SquashWhitespace(f.ContactNumber),
			})
		}

		t.Hash = contentHash(map[string]any{
			"source":       "transnet",
			"external_id":  t.ExternalID,
			"title":        t.Title,
			"description":  t.Description,
			"category":     t.Category,
			"location":     t.Location,
			"buyer":        t.Buyer,
			"status":       t.Status,
			"published_at": isoOrNull(t.PublishedAt),
			"closing_at":   isoOrNull(t.ClosingAt),
			"briefing_at":  isoOrNull(t.BriefingAt),
		})

		tenders = append(tenders, t)
	}
	return tenders, nil
}

// mergeTransnet overlays non-empty detail fields on the list summary.
func mergeTransnet(base, detail transnetFields) transnetFields {
	out := base
	for _, f := range []struct{ dst *string; src string }{
		{&out.TenderNumber, detail.TenderNumber},
		{&out.Title, detail.Title},
		{&out.Description, detail.Description},
		{&out.TenderCategory, detail.TenderCategory},
		{&out.TenderType, detail.TenderType},
		{&out.LocationOfService, detail.LocationOfService},
		{&out.Institution, detail.Institution},
		{&out.Status, detail.Status},
		{&out.PublishedDate, detail.PublishedDate},
		{&out.OpeningDate, detail.OpeningDate},
		{&out.BriefingDate, detail.BriefingDate},
		{&out.BriefingVenue, detail.BriefingVenue},
		{&out.ClosingDate, detail.ClosingDate},
		{&out.ContactPerson, detail.ContactPerson},
		{&out.ContactEmail, detail.ContactEmail},
		{&out.ContactNumber, detail.ContactNumber},
		{&out.URL, detail.URL},
	} {
		if s := SquashWhitespace(f.src); s != "" {
			*f.dst = s
		}
	}
	return out
}
