package queue

import (
	"context"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	body, err := NewEnvelope("raw-tenders", "eskom/page-1.json")
	if err != nil {
		t.Fatal(err)
	}
	refs, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 {
		t.Fatalf("got %d refs, want 1", len(refs))
	}
	if refs[0].Bucket != "raw-tenders" || refs[0].Key != "eskom/page-1.json" {
		t.Errorf("ref = %+v", refs[0])
	}
}

func TestDecodeEnvelopeSkipsEmptyKeys(t *testing.T) {
	refs, err := DecodeEnvelope([]byte(`{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":""}}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 0 {
		t.Errorf("got %d refs, want 0", len(refs))
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Error("expected an error for a malformed envelope")
	}
}

func TestMemQueueOrderAndAck(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()
	for _, body := range []string{"one", "two"} {
		if err := q.Enqueue(ctx, []byte(body)); err != nil {
			t.Fatal(err)
		}
	}

	d, err := q.Receive(ctx)
	if err != nil || d == nil {
		t.Fatalf("receive: %v", err)
	}
	if string(d.Body) != "one" {
		t.Errorf("body = %q, want FIFO order", d.Body)
	}
	if err := d.Ack(ctx); err != nil {
		t.Fatal(err)
	}
	if q.Len() != 1 {
		t.Errorf("len = %d after ack, want 1", q.Len())
	}
}

func TestMemQueueNackRequeuesAtFront(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()
	q.Enqueue(ctx, []byte("one"))
	q.Enqueue(ctx, []byte("two"))

	d, _ := q.Receive(ctx)
	if err := d.Nack(ctx); err != nil {
		t.Fatal(err)
	}

	d, _ = q.Receive(ctx)
	if string(d.Body) != "one" {
		t.Errorf("body = %q, want the nacked message redelivered first", d.Body)
	}
}

func TestNackRecordsFailedAttempt(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()
	q.Enqueue(ctx, []byte("one"))

	d, _ := q.Receive(ctx)
	if d.Attempts != 0 {
		t.Errorf("attempts = %d on first delivery, want 0", d.Attempts)
	}
	if err := d.Nack(ctx); err != nil {
		t.Fatal(err)
	}

	d, _ = q.Receive(ctx)
	if d.Attempts != 1 {
		t.Errorf("attempts = %d after a nack, want the failure recorded", d.Attempts)
	}
}

func TestMemQueueEmptyReceive(t *testing.T) {
	q := NewMemQueue()
	d, err := q.Receive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Errorf("delivery = %+v, want nil on empty queue", d)
	}
}
