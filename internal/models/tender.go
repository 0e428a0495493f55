package models

import "time"

// Tender is the canonical, normalized representation of a tender notice.
// Pointer fields are NULL in the database when absent.
type Tender struct {
	ID             int64  `json:"id"`
	SourceID       int64  `json:"-"`
	Source         string `json:"source"`
	ExternalID     string `json:"external_id"`
	SourceTenderID string `json:"source_tender_id,omitempty"`

	Title                    string `json:"title"`
	Description              string `json:"description,omitempty"`
	Category                 string `json:"category,omitempty"`
	Location                 string `json:"location,omitempty"`
	Buyer                    string `json:"buyer,omitempty"`
	ProcurementMethod        string `json:"procurement_method,omitempty"`
	ProcurementMethodDetails string `json:"procurement_method_details,omitempty"`
	Status                   string `json:"status,omitempty"`
	TenderType               string `json:"tender_type,omitempty"`

	PublishedAt   *time.Time `json:"published_at,omitempty"`
	BriefingAt    *time.Time `json:"briefing_at,omitempty"`
	TenderStartAt *time.Time `json:"tender_start_at,omitempty"`
	ClosingAt     *time.Time `json:"closing_at,omitempty"`

	BriefingVenue      string `json:"briefing_venue,omitempty"`
	BriefingCompulsory *bool  `json:"briefing_compulsory,omitempty"`
	BriefingDetails    string `json:"briefing_details,omitempty"`

	ValueAmount   *float64 `json:"value_amount,omitempty"`
	ValueCurrency string   `json:"value_currency,omitempty"`

	TenderBoxAddress string `json:"tender_box_address,omitempty"`
	TargetAudience   string `json:"target_audience,omitempty"`
	ContractType     string `json:"contract_type,omitempty"`
	ProjectType      string `json:"project_type,omitempty"`
	QueriesTo        string `json:"queries_to,omitempty"`
	URL              string `json:"url,omitempty"`

	Hash       string    `json:"-"`
	LastSeenAt time.Time `json:"last_seen_at"`

	Documents []Document `json:"documents,omitempty"`
	Contacts  []Contact  `json:"contacts,omitempty"`
}

// Document is a file attached to a tender. The set is owned by the tender
// and replaced wholesale on every upsert.
type Document struct {
	ID          int64      `json:"id,omitempty"`
	TenderID    int64      `json:"-"`
	URL         string     `json:"url"`
	Name        string     `json:"name,omitempty"`
	MimeType    string     `json:"mime_type,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Contact is a point of contact for a tender, replaced wholesale on upsert.
type Contact struct {
	ID       int64  `json:"id,omitempty"`
	TenderID int64  `json:"-"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// TenderSummary is the list-view shape returned by GET /tenders.
type TenderSummary struct {
	ID          int64      `json:"id"`
	Source      string     `json:"source"`
	ExternalID  string     `json:"external_id"`
	Title       string     `json:"title"`
	Category    string     `json:"category,omitempty"`
	Location    string     `json:"location,omitempty"`
	Buyer       string     `json:"buyer,omitempty"`
	Status      string     `json:"status,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ClosingAt   *time.Time `json:"closing_at,omitempty"`
	URL         string     `json:"url,omitempty"`
}

// User mirrors the identity provider's user record; only email is managed
// here, authentication lives elsewhere.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
