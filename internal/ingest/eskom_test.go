package ingest

import (
	"testing"
	"time"
)

const eskomPayload = `[
  {
    "TenderID": "T-1",
    "enquiryNumber": "ENQ-55",
    "title": "Supply of transformers",
    "scopeDetails": "  scope   text  ",
    "dt": "Goods",
    "tenderBoxAddress": "Megawatt Park, Sunninghill",
    "published": "2025-Oct-01 09:00:00",
    "closing": "2025-Nov-15 12:00:00",
    "readMore": "https://tenderbulletin.eskom.co.za/t/1",
    "downloadLink": "https://tenderbulletin.eskom.co.za/t/1/docs.zip"
  },
  {
    "TenderID": "",
    "title": "row without an id"
  }
]`

func TestEskomNormalize(t *testing.T) {
	n := &EskomNormalizer{Loc: testLoc}
	tenders, err := n.Normalize([]byte(eskomPayload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tenders) != 1 {
		t.Fatalf("got %d tenders, want 1 (blank TenderID row skipped)", len(tenders))
	}

	got := tenders[0]
	if got.Source != "eskom" || got.ExternalID != "T-1" {
		t.Errorf("identity = %s/%s, want eskom/T-1", got.Source, got.ExternalID)
	}
	if got.SourceTenderID != "ENQ-55" {
		t.Errorf("source tender id = %q", got.SourceTenderID)
	}
	if got.Description != "scope text" {
		t.Errorf("description = %q, want whitespace squashed", got.Description)
	}
	if got.Buyer != "Eskom" {
		t.Errorf("buyer = %q", got.Buyer)
	}
	wantPub := time.Date(2025, time.October, 1, 9, 0, 0, 0, testLoc)
	if got.PublishedAt == nil || !got.PublishedAt.Equal(wantPub) {
		t.Errorf("published_at = %v, want %v", got.PublishedAt, wantPub)
	}
	wantClose := time.Date(2025, time.November, 15, 12, 0, 0, 0, testLoc)
	if got.ClosingAt == nil || !got.ClosingAt.Equal(wantClose) {
		t.Errorf("closing_at = %v, want %v", got.ClosingAt, wantClose)
	}
	if len(got.Documents) != 1 || got.Documents[0].URL != "https://tenderbulletin.eskom.co.za/t/1/docs.zip" {
		t.Errorf("documents = %v, want the single download link", got.Documents)
	}
	if len(got.Contacts) != 0 {
		t.Errorf("contacts = %v, want none", got.Contacts)
	}
	if len(got.Hash) != 64 {
		t.Errorf("hash = %q, want 64 hex chars", got.Hash)
	}
}

func TestEskomHashDeterministic(t *testing.T) {
	n := &EskomNormalizer{Loc: testLoc}
	first, err := n.Normalize([]byte(eskomPayload))
	if err != nil {
		t.Fatal(err)
	}
	second, err := n.Normalize([]byte(eskomPayload))
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Hash != second[0].Hash {
		t.Errorf("hash unstable across runs: %s vs %s", first[0].Hash, second[0].Hash)
	}
}

func TestEskomTitleFallsBackToDescription(t *testing.T) {
	n := &EskomNormalizer{Loc: testLoc}
	tenders, err := n.Normalize([]byte(`[{"TenderID":"T-2","scopeDetails":"scope only"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if tenders[0].Title != "scope only" {
		t.Errorf("title = %q, want description fallback", tenders[0].Title)
	}
}
