package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/eventbus"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

const (
	maxSubjectLen     = 95
	maxDescriptionLen = 300
)

// Message is one per-tender notification. The category attribute drives
// subscriber filter policies.
type Message struct {
	Subject    string
	Body       []byte
	Attributes map[string]string
}

// Publisher delivers notification messages. Implementations are called
// only after the tender rows are committed.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

type messageBody struct {
	TenderID    int64      `json:"tenderId"`
	Title       string     `json:"title"`
	Category    string     `json:"category,omitempty"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ClosingAt   *time.Time `json:"closing_at,omitempty"`
	URL         string     `json:"url,omitempty"`
	Description string     `json:"description,omitempty"`
}

// NewTenderMessage builds the notification for one upserted tender.
func NewTenderMessage(t models.Tender) Message {
	category := t.Category
	if category == "" {
		category = t.Source
	}
	if category == "" {
		category = "general"
	}

	body, _ := json.Marshal(messageBody{
		TenderID:    t.ID,
		Title:       t.Title,
		Category:    t.Category,
		Source:      t.Source,
		PublishedAt: t.PublishedAt,
		ClosingAt:   t.ClosingAt,
		URL:         t.URL,
		Description: truncate(t.Description, maxDescriptionLen),
	})

	return Message{
		Subject:    truncate(fmt.Sprintf("New %s tender: %s", category, t.Title), maxSubjectLen),
		Body:       body,
		Attributes: map[string]string{"category": strings.ToLower(category)},
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// BusPublisher routes messages onto the in-process notification bus, which
// fans them out to websocket subscribers by category.
type BusPublisher struct {
	bus *eventbus.Bus
}

func NewBusPublisher(bus *eventbus.Bus) *BusPublisher {
	return &BusPublisher{bus: bus}
}

func (p *BusPublisher) Publish(ctx context.Context, msg Message) error {
	p.bus.Publish(eventbus.Notification{
		Category:    msg.Attributes["category"],
		Subject:     msg.Subject,
		Body:        msg.Body,
		PublishedAt: time.Now().UTC(),
	})
	return nil
}

// LogPublisher writes messages to the log; the default when no bus is
// wired, and handy in local runs.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p *LogPublisher) Publish(ctx context.Context, msg Message) error {
	p.Log.Info().
		Str("subject", msg.Subject).
		Str("category", msg.Attributes["category"]).
		RawJSON("body", msg.Body).
		Msg("tender notification")
	return nil
}
