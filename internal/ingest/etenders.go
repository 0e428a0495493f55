package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// etendersPage is one page from the national OCDS API.
type etendersPage struct {
	Data []etendersRecord `json:"data"`
}

type etendersRecord struct {
	TenderNo            string `json:"tender_No"`
	Category            string `json:"category"`
	Description         string `json:"description"`
	TenderType          string `json:"tenderType"`
	Status              string `json:"status"`
	OrganOfState        string `json:"organ_of_State"`
	Province            string `json:"province"`
	PlaceServices       string `json:"placeServicesRequired"`
	DatePublished       string `json:"datePublished"`
	ClosingDate         string `json:"closingDate"`
	BriefingSession     string `json:"briefingSession"`
	BriefingVenue       string `json:"briefingVenue"`
	CompulsoryBriefing  bool   `json:"compulsory_briefing_session"`
	Conditions          string `json:"conditions"`
	ContactPerson       string `json:"contactPerson"`
	Email               string `json:"email"`
	Telephone           string `json:"telephone"`
	Fax                 string `json:"fax"`
	SupportDocument     []struct {
		URL      string `json:"url"`
		FileName string `json:"fileName"`
	} `json:"supportDocument"`
}

// EtendersNormalizer handles the OCDS pages the fetcher persists. The
// portal exposes no stable detail URL yet, so url stays null.
type EtendersNormalizer struct {
	Loc *time.Location
}

func (n *EtendersNormalizer) Source() string { return "etenders" }

func (n *EtendersNormalizer) Normalize(raw []byte) ([]models.Tender, error) {
	var page etendersPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("etenders payload: %w", err)
	}

	tenders := make([]models.Tender, 0, len(page.Data))
	for _, rec := range page.Data {
		externalID := SquashWhitespace(rec.TenderNo)
		if externalID == "" {
			continue
		}

		description := SquashWhitespace(CleanHTMLish(rec.Description))
		t := models.Tender{
			Source:         "etenders",
			ExternalID:     externalID,
			SourceTenderID: externalID,
			Title:          description,
			Description:    description,
			Category:       SquashWhitespace(rec.Category),
			TenderType:     SquashWhitespace(rec.TenderType),
			Status:         SquashWhitespace(rec.Status),
			Buyer:          SquashWhitespace(rec.OrganOfState),
			Location:       SquashWhitespace(rec.Province),
			BriefingVenue:  SquashWhitespace(rec.BriefingVenue),
			PublishedAt:    ParseISO(rec.DatePublished, n.Loc),
			ClosingAt:      ParseISO(rec.ClosingDate, n.Loc),
			BriefingAt:     ParseISO(rec.BriefingSession, n.Loc),
		}
		if place := SquashWhitespace(rec.PlaceServices); place != "" && t.Location == "" {
			t.Location = place
		}
		if conditions := SquashWhitespace(CleanHTMLish(rec.Conditions)); conditions != "" {
			t.BriefingDetails = conditions
		}
		if rec.CompulsoryBriefing {
			yes := true
			t.BriefingCompulsory = &yes
		}

		// Documents without a URL are only a file name on this portal;
		// they are dropped rather than stored as dead links.
		for _, doc := range rec.SupportDocument {
			url := SquashWhitespace(doc.URL)
			if url == "" {
				continue
			}
			mime := ""
			if strings.HasSuffix(strings.ToLower(url), ".pdf") ||
				strings.HasSuffix(strings.ToLower(doc.FileName), ".pdf") {
				mime = "application/pdf"
			}
			t.Documents = append(t.Documents, models.Document{
				URL:      url,
				Name:     SquashWhitespace(doc.FileName),
				MimeType: mime,
			})
		}

		name := SquashWhitespace(rec.ContactPerson)
		email := strings.ToLower(SquashWhitespace(rec.Email))
		phone := SquashWhitespace(rec.Telephone)
		if phone == "" {
			phone = SquashWhitespace(rec.Fax)
		}
		if name != "" || email != "" || phone != "" {
			t.Contacts = append(t.Contacts, models.Contact{Name: name, Email: email, Phone: phone})
		}

		t.Hash = contentHash(map[string]any{
			"source":       "etenders",
			"external_id":  t.ExternalID,
			"title":        t.Title,
			"description":  t.Description,
			"category":     t.Category,
			"location":     t.Location,
			"buyer":        t.Buyer,
			"status":       t.Status,
			"published_at": isoOrNull(t.PublishedAt),
			"closing_at":   isoOrNull(t.ClosingAt),
		})

		tenders = append(tenders, t)
	}
	return tenders, nil
}
