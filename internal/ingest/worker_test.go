package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/blob"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/publish"
	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/queue"
)

// fakeTenderStore keeps committed rows keyed by source/external_id so
// tests can assert upsert keying and wholesale child replacement without a
// database. Rows only become visible on Commit.
type fakeTenderStore struct {
	trace     []string
	rows      map[string]storedTender
	failRows  map[string]error
	commitErr error
	batches   int
}

type storedTender struct {
	tender  models.Tender
	upserts int
}

func (s *fakeTenderStore) BeginBatch(ctx context.Context) (BatchTx, error) {
	s.batches++
	if s.rows == nil {
		s.rows = make(map[string]storedTender)
	}
	return &fakeBatch{store: s}, nil
}

type fakeBatch struct {
	store   *fakeTenderStore
	pending []models.Tender
}

func (b *fakeBatch) UpsertTender(ctx context.Context, t *models.Tender) error {
	if err := b.store.failRows[t.ExternalID]; err != nil {
		return err
	}
	b.store.trace = append(b.store.trace, "upsert "+t.ExternalID)
	b.pending = append(b.pending, *t)
	return nil
}

func (b *fakeBatch) Commit(ctx context.Context) error {
	if b.store.commitErr != nil {
		return b.store.commitErr
	}
	for _, t := range b.pending {
		key := t.Source + "/" + t.ExternalID
		row := b.store.rows[key]
		row.tender = t // documents and contacts replaced wholesale
		row.upserts++
		b.store.rows[key] = row
	}
	b.store.trace = append(b.store.trace, "commit")
	return nil
}

func (b *fakeBatch) Rollback(ctx context.Context) error {
	b.pending = nil
	b.store.trace = append(b.store.trace, "rollback")
	return nil
}

type fakePublisher struct {
	trace    *[]string
	messages []publish.Message
}

func (p *fakePublisher) Publish(ctx context.Context, msg publish.Message) error {
	if p.trace != nil {
		*p.trace = append(*p.trace, "publish")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func newTestWorker(t *testing.T, objects map[string]string, tenders *fakeTenderStore, pub *fakePublisher) *Worker {
	t.Helper()
	store := blob.NewMemStore()
	for key, body := range objects {
		if err := store.Put(context.Background(), key, []byte(body), nil); err != nil {
			t.Fatal(err)
		}
	}
	return NewWorker(store, tenders, pub, testLoc, zerolog.Nop())
}

func envelopeFor(t *testing.T, key string) []byte {
	t.Helper()
	body, err := queue.NewEnvelope("raw-tenders", key)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestHandleEventPublishesAfterCommit(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{trace: &tenders.trace}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-1","title":"one"},{"TenderID":"T-2","title":"two"}]`,
	}, tenders, pub)

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/page-1.json")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	want := []string{"upsert T-1", "upsert T-2", "commit", "publish", "publish"}
	if strings.Join(tenders.trace, ",") != strings.Join(want, ",") {
		t.Errorf("trace = %v, want %v", tenders.trace, want)
	}
}

func TestHandleEventReingestKeepsOneRow(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-9","title":"Supply of valves","downloadLink":"https://tenderbulletin.eskom.co.za/t/9/docs.zip"}]`,
	}, tenders, pub)
	env := envelopeFor(t, "eskom/page-1.json")

	if err := w.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	first, ok := tenders.rows["eskom/T-9"]
	if !ok || first.upserts != 1 || first.tender.Hash == "" {
		t.Fatalf("first ingest stored %+v", first)
	}

	if err := w.HandleEvent(context.Background(), env); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if len(tenders.rows) != 1 {
		t.Errorf("re-ingest grew the store to %d rows, want 1", len(tenders.rows))
	}
	second := tenders.rows["eskom/T-9"]
	// The same row is written again, so last_seen_at refreshes on conflict.
	if second.upserts != 2 {
		t.Errorf("upserts = %d, want the existing row updated", second.upserts)
	}
	if second.tender.Hash != first.tender.Hash {
		t.Errorf("hash changed on unchanged input: %s vs %s", first.tender.Hash, second.tender.Hash)
	}
}

func TestHandleEventReplacesDocumentsOnReingest(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-9","title":"Supply of valves","downloadLink":"https://tenderbulletin.eskom.co.za/t/9/old.zip"}]`,
		"eskom/page-2.json": `[{"TenderID":"T-9","title":"Supply of valves","downloadLink":"https://tenderbulletin.eskom.co.za/t/9/new.zip"}]`,
	}, tenders, pub)

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/page-1.json")); err != nil {
		t.Fatal(err)
	}
	firstHash := tenders.rows["eskom/T-9"].tender.Hash

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/page-2.json")); err != nil {
		t.Fatal(err)
	}
	if len(tenders.rows) != 1 {
		t.Fatalf("store holds %d rows, want 1", len(tenders.rows))
	}
	got := tenders.rows["eskom/T-9"].tender
	if len(got.Documents) != 1 || got.Documents[0].URL != "https://tenderbulletin.eskom.co.za/t/9/new.zip" {
		t.Errorf("documents = %v, want only the replacement link", got.Documents)
	}
	if got.Hash == firstHash {
		t.Error("hash should change when the download link changes")
	}
}

func TestHandleEventNoPublishOnCommitFailure(t *testing.T) {
	tenders := &fakeTenderStore{commitErr: errors.New("deadlock")}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-1","title":"one"}]`,
	}, tenders, pub)

	err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/page-1.json"))
	if err == nil {
		t.Fatal("expected an error from the failed commit")
	}
	if len(pub.messages) != 0 {
		t.Errorf("published %d messages after a failed commit, want 0", len(pub.messages))
	}
}

func TestHandleEventRowFailureContinuesBatch(t *testing.T) {
	tenders := &fakeTenderStore{failRows: map[string]error{"T-1": errors.New("bad row")}}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-1","title":"one"},{"TenderID":"T-2","title":"two"}]`,
	}, tenders, pub)

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/page-1.json")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("published %d messages, want 1 (only the committed row)", len(pub.messages))
	}
	if !strings.Contains(pub.messages[0].Subject, "two") {
		t.Errorf("subject = %q, want the surviving row", pub.messages[0].Subject)
	}
}

func TestHandleEventSplitsLargeBatches(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("[")
	for i := 0; i < 150; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"TenderID":"T-%d","title":"t"}`, i)
	}
	sb.WriteString("]")

	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{"eskom/big.json": sb.String()}, tenders, pub)

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/big.json")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if tenders.batches != 2 {
		t.Errorf("opened %d batches for 150 rows, want 2", tenders.batches)
	}
	if len(pub.messages) != 150 {
		t.Errorf("published %d messages, want 150", len(pub.messages))
	}
}

func TestHandleEventSkipsUnknownPrefix(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{"mystery/x.json": `[]`}, tenders, pub)

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "mystery/x.json")); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if tenders.batches != 0 || len(pub.messages) != 0 {
		t.Error("unknown prefix must be skipped without side effects")
	}
}

func TestHandleEventDropsMalformedInput(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{"eskom/bad.json": `{{not json`}, tenders, pub)

	// Malformed envelope: dropped, not retried.
	if err := w.HandleEvent(context.Background(), []byte("not an envelope")); err != nil {
		t.Errorf("malformed envelope should be dropped, got %v", err)
	}
	// Malformed payload: dropped, not retried.
	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/bad.json")); err != nil {
		t.Errorf("malformed payload should be dropped, got %v", err)
	}
	if tenders.batches != 0 {
		t.Errorf("opened %d batches, want 0", tenders.batches)
	}
}

func TestHandleEventMissingObjectIsTransient(t *testing.T) {
	tenders := &fakeTenderStore{}
	w := newTestWorker(t, nil, tenders, &fakePublisher{})

	if err := w.HandleEvent(context.Background(), envelopeFor(t, "eskom/gone.json")); err == nil {
		t.Error("a missing object must surface an error so the delivery is retried")
	}
}

func TestRunDrainsQueueUntilCancelled(t *testing.T) {
	tenders := &fakeTenderStore{}
	pub := &fakePublisher{}
	w := newTestWorker(t, map[string]string{
		"eskom/page-1.json": `[{"TenderID":"T-1","title":"one"}]`,
	}, tenders, pub)

	q := queue.NewMemQueue()
	if err := q.Enqueue(context.Background(), envelopeFor(t, "eskom/page-1.json")); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := w.Run(ctx, q, time.Millisecond)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run returned %v, want the context error", err)
	}
	if q.Len() != 0 {
		t.Errorf("queue still holds %d messages", q.Len())
	}
	if len(pub.messages) != 1 {
		t.Errorf("published %d messages, want 1", len(pub.messages))
	}
}
