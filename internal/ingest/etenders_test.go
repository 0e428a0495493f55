package ingest

import (
	"testing"
	"time"
)

const etendersPayload = `{
  "data": [
    {
      "tender_No": "RFQ-2025-0042",
      "category": "Services: Professional",
      "description": "Appointment of a service provider for security services",
      "tenderType": "Request for Quotation",
      "status": "Published",
      "organ_of_State": "Department of Public Works",
      "province": "Western Cape",
      "datePublished": "2025-07-15T00:00:00",
      "closingDate": "2025-08-20T11:00:00",
      "briefingSession": "2025-07-22T10:00:00",
      "briefingVenue": "Customs House, Cape Town",
      "compulsory_briefing_session": true,
      "conditions": "Late submissions will not be accepted",
      "contactPerson": "P. Mokoena",
      "email": "P.Mokoena@dpw.gov.za",
      "telephone": "",
      "fax": "021 555 0000",
      "supportDocument": [
        {"url": "https://ocds.etenders.gov.za/doc/42", "fileName": "RFQ-42.PDF"},
        {"url": "", "fileName": "orphan.docx"}
      ]
    }
  ]
}`

func TestEtendersNormalize(t *testing.T) {
	n := &EtendersNormalizer{Loc: testLoc}
	tenders, err := n.Normalize([]byte(etendersPayload))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tenders) != 1 {
		t.Fatalf("got %d tenders, want 1", len(tenders))
	}
	got := tenders[0]

	if got.Source != "etenders" || got.ExternalID != "RFQ-2025-0042" {
		t.Errorf("identity = %s/%s", got.Source, got.ExternalID)
	}
	if got.Title != got.Description {
		t.Errorf("title %q should mirror description %q", got.Title, got.Description)
	}
	if got.Buyer != "Department of Public Works" || got.Location != "Western Cape" {
		t.Errorf("buyer/location = %q/%q", got.Buyer, got.Location)
	}
	if got.URL != "" {
		t.Errorf("url = %q, want empty (no stable detail URL)", got.URL)
	}

	wantClose := time.Date(2025, time.August, 20, 11, 0, 0, 0, testLoc)
	if got.ClosingAt == nil || !got.ClosingAt.Equal(wantClose) {
		t.Errorf("closing_at = %v, want %v", got.ClosingAt, wantClose)
	}
	if got.BriefingAt == nil || got.PublishedAt == nil {
		t.Error("briefing/published timestamps missing")
	}
	if got.BriefingCompulsory == nil || !*got.BriefingCompulsory {
		t.Error("briefing should be flagged compulsory")
	}
	if got.BriefingDetails != "Late submissions will not be accepted" {
		t.Errorf("briefing_details = %q", got.BriefingDetails)
	}

	// The URL-less document is dropped; the .PDF file name sets the mime type.
	if len(got.Documents) != 1 {
		t.Fatalf("documents = %v, want one", got.Documents)
	}
	doc := got.Documents[0]
	if doc.URL != "https://ocds.etenders.gov.za/doc/42" || doc.MimeType != "application/pdf" {
		t.Errorf("document = %+v", doc)
	}

	if len(got.Contacts) != 1 {
		t.Fatalf("contacts = %v, want one", got.Contacts)
	}
	c := got.Contacts[0]
	if c.Name != "P. Mokoena" || c.Email != "p.mokoena@dpw.gov.za" {
		t.Errorf("contact = %+v", c)
	}
	if c.Phone != "021 555 0000" {
		t.Errorf("phone = %q, want the fax fallback", c.Phone)
	}
}

func TestEtendersEmptyPage(t *testing.T) {
	n := &EtendersNormalizer{Loc: testLoc}
	tenders, err := n.Normalize([]byte(`{"data": []}`))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(tenders) != 0 {
		t.Errorf("got %d tenders, want 0", len(tenders))
	}
}

func TestEtendersPlaceServicesFallback(t *testing.T) {
	n := &EtendersNormalizer{Loc: testLoc}
	tenders, err := n.Normalize([]byte(`{"data":[{"tender_No":"X-1","description":"d","placeServicesRequired":"Polokwane"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if tenders[0].Location != "Polokwane" {
		t.Errorf("location = %q, want placeServicesRequired fallback", tenders[0].Location)
	}
}
