package ingest

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// sanralRecord is one SANRAL notice: short metadata plus the free-text
// detail page, which carries the dates, venue and submission address as
// prose.
type sanralRecord struct {
	TenderNumber string `json:"tenderNumber"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Region       string `json:"region"`
	QueriesTo    string `json:"queriesTo"`
	URL          string `json:"url"`
	Details      struct {
		RawText    string   `json:"rawText"`
		Paragraphs []string `json:"paragraphs"`
	} `json:"details"`
}

var (
	sanralClosingRe    = regexp.MustCompile(`(?i)CLOSING (DATE|TIME)`)
	sanralBriefingRe   = regexp.MustCompile(`(?i)BRIEFING`)
	sanralIssueRe      = regexp.MustCompile(`(?i)ISSUE DATE`)
	sanralCompletionRe = regexp.MustCompile(`(?i)COMPLETION AND DELIVERY`)
	sanralAddressRe    = regexp.MustCompile(`(?i)at the offices of|delivered to|address|offices of`)
	sanralDocRe        = regexp.MustCompile(`(?i)\.(pdf|zip|docx?|xlsx?)(\?.*)?$`)
	compulsoryRe       = regexp.MustCompile(`(?i)\bcompulsory\b`)
)

var fileShareHosts = []string{"drive.google.com", "dropbox.com", "onedrive.live.com"}

// SanralNormalizer runs the prose parser over the detail-page lines.
type SanralNormalizer struct {
	Loc *time.Location
}

func (n *SanralNormalizer) Source() string { return "sanral" }

func (n *SanralNormalizer) Normalize(raw []byte) ([]models.Tender, error) {
	var records []sanralRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("sanral payload: %w", err)
	}

	tenders := make([]models.Tender, 0, len(records))
	for _, rec := range records {
		externalID := SquashWhitespace(rec.TenderNumber)
		if externalID == "" {
			continue
		}
		tenders = append(tenders, n.normalizeOne(rec, externalID))
	}
	return tenders, nil
}

func (n *SanralNormalizer) normalizeOne(rec sanralRecord, externalID string) models.Tender {
	lines := rec.Details.Paragraphs
	if len(lines) == 0 {
		lines = strings.Split(rec.Details.RawText, "\n")
	}
	for i, line := range lines {
		lines[i] = SquashWhitespace(CleanHTMLish(line))
	}
	prose := strings.Join(lines, "\n")

	t := models.Tender{
		Source:         "sanral",
		ExternalID:     externalID,
		SourceTenderID: externalID,
		Title:          SquashWhitespace(rec.Title),
		Category:       SquashWhitespace(rec.Category),
		Location:       SquashWhitespace(rec.Region),
		Buyer:          "SANRAL",
		QueriesTo:      SquashWhitespace(rec.QueriesTo),
		URL:            SquashWhitespace(rec.URL),
	}

	t.Description = SquashWhitespace(CleanHTMLish(rec.Description))
	if full := SquashWhitespace(prose); full != "" && descriptionTruncated(t.Description) {
		t.Description = full
	}

	var briefingLine string
	var briefingDetails []string
	for _, line := range lines {
		switch {
		case sanralClosingRe.MatchString(line):
			if t.ClosingAt == nil {
				t.ClosingAt = lineInstant(line, rangeEnd, n.Loc)
			}
		case sanralBriefingRe.MatchString(line):
			if t.BriefingAt == nil {
				briefingLine = line
				t.BriefingAt = lineInstant(line, rangeStart, n.Loc)
				if r := ExtractTimeRange(line); r != nil {
					briefingDetails = append(briefingDetails,
						"Briefing window ends at "+r.End.String())
				}
				if compulsoryRe.MatchString(line) {
					yes := true
					t.BriefingCompulsory = &yes
				}
			}
		case sanralIssueRe.MatchString(line):
			if t.PublishedAt == nil {
				t.PublishedAt = lineInstant(line, rangeStart, n.Loc)
			}
		}
	}
	if briefingLine != "" {
		briefingDetails = append([]string{briefingLine}, briefingDetails...)
		t.BriefingDetails = strings.Join(briefingDetails, " ")
	}

	for _, line := range lines {
		if venueRe.MatchString(line) {
			t.BriefingVenue = line
			break
		}
	}
	if t.BriefingVenue == "" && briefingLine != "" {
		t.BriefingVenue = GuessVenueFromLine(briefingLine)
	}

	t.TenderBoxAddress = submissionAddress(lines)
	t.ValueAmount, t.ValueCurrency = ExtractTenderValue(prose)

	phone := ExtractPhone(rec.QueriesTo + "\n" + prose)
	for _, email := range ExtractEmails(rec.QueriesTo + "\n" + prose) {
		t.Contacts = append(t.Contacts, models.Contact{Email: email, Phone: phone})
	}

	for _, u := range ExtractURLs(prose) {
		if isDocumentURL(u) {
			t.Documents = append(t.Documents, models.Document{URL: u})
		}
	}

	t.Hash = contentHash(map[string]any{
		"source":       "sanral",
		"external_id":  t.ExternalID,
		"title":        t.Title,
		"description":  t.Description,
		"location":     t.Location,
		"published_at": isoOrNull(t.PublishedAt),
		"briefing_at":  isoOrNull(t.BriefingAt),
		"closing_at":   isoOrNull(t.ClosingAt),
		"venue":        t.BriefingVenue,
		"address":      t.TenderBoxAddress,
	})
	return t
}

func descriptionTruncated(s string) bool {
	return strings.HasSuffix(s, "…") || strings.Contains(s, "&n") ||
		utf8.RuneCountInString(s) < 80
}

// lineInstant reads a date off one prose line. A time range on the line
// overrides the clock part: the closing deadline is the range end, a
// briefing starts at the range start.
func lineInstant(line string, pick func(TimeRange) TimeOfDay, loc *time.Location) *time.Time {
	date := ExtractTextualDateTime(line, loc)
	if date == nil {
		date = ExtractNumericDateTime(line, loc)
	}
	if date == nil {
		return nil
	}
	if r := ExtractTimeRange(line); r != nil {
		tod := pick(*r)
		t := time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, loc)
		return &t
	}
	return date
}

func rangeStart(r TimeRange) TimeOfDay { return r.Start }
func rangeEnd(r TimeRange) TimeOfDay   { return r.End }

// submissionAddress scans the ten lines after the completion/delivery
// heading for an address-like line, then joins it with up to five
// following lines.
func submissionAddress(lines []string) string {
	start := -1
	for i, line := range lines {
		if sanralCompletionRe.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return ""
	}

	limit := start + 10
	if limit > len(lines) {
		limit = len(lines)
	}
	for i := start; i < limit; i++ {
		if !sanralAddressRe.MatchString(lines[i]) {
			continue
		}
		parts := []string{lines[i]}
		for j := i + 1; j < len(lines) && j <= i+5; j++ {
			if lines[j] == "" {
				break
			}
			parts = append(parts, lines[j])
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func isDocumentURL(u string) bool {
	if sanralDocRe.MatchString(u) {
		return true
	}
	for _, host := range fileShareHosts {
		if strings.Contains(u, host) {
			return true
		}
	}
	return false
}
