package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ObjectRef identifies one newly created object in the store.
type ObjectRef struct {
	Bucket string
	Key    string
}

// Envelope is the notification shape delivered for object-created events.
// Any equivalent envelope works as long as it exposes bucket and key.
type Envelope struct {
	Records []struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// NewEnvelope builds the event payload for a single object.
func NewEnvelope(bucket, key string) ([]byte, error) {
	var env Envelope
	env.Records = make([]struct {
		S3 struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	}, 1)
	env.Records[0].S3.Bucket.Name = bucket
	env.Records[0].S3.Object.Key = key
	return json.Marshal(env)
}

// DecodeEnvelope extracts the object references from an event payload.
func DecodeEnvelope(body []byte) ([]ObjectRef, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	refs := make([]ObjectRef, 0, len(env.Records))
	for _, rec := range env.Records {
		if rec.S3.Object.Key == "" {
			continue
		}
		refs = append(refs, ObjectRef{Bucket: rec.S3.Bucket.Name, Key: rec.S3.Object.Key})
	}
	return refs, nil
}

// Delivery is one leased message. Ack removes it; Nack releases the lease
// so the message is redelivered. Attempts counts the failed deliveries
// recorded before this one.
type Delivery struct {
	Body     []byte
	Attempts int
	Ack      func(ctx context.Context) error
	Nack     func(ctx context.Context) error
}

// Consumer hands out deliveries one at a time. Receive returns (nil, nil)
// when the queue is empty.
type Consumer interface {
	Receive(ctx context.Context) (*Delivery, error)
}

// Producer enqueues event payloads.
type Producer interface {
	Enqueue(ctx context.Context, body []byte) error
}

// PGQueue is a Postgres-backed delivery queue. A delivery holds a row lock
// (FOR UPDATE SKIP LOCKED) until it is acked or nacked, so a crashed
// consumer's messages come back automatically.
type PGQueue struct {
	pool  *pgxpool.Pool
	table string
}

func NewPGQueue(pool *pgxpool.Pool, table string) *PGQueue {
	if table == "" {
		table = "ingest_queue"
	}
	return &PGQueue{pool: pool, table: table}
}

func (q *PGQueue) Enqueue(ctx context.Context, body []byte) error {
	_, err := q.pool.Exec(ctx,
		fmt.Sprintf("INSERT INTO %s (payload) VALUES ($1)", q.table), body)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

func (q *PGQueue) Receive(ctx context.Context) (*Delivery, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue begin: %w", err)
	}

	var id int64
	var payload []byte
	var attempts int
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, payload, attempts FROM %s ORDER BY id
		FOR UPDATE SKIP LOCKED LIMIT 1
	`, q.table)).Scan(&id, &payload, &attempts)
	if err == pgx.ErrNoRows {
		_ = tx.Rollback(ctx)
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, fmt.Errorf("queue receive: %w", err)
	}

	return &Delivery{
		Body:     payload,
		Attempts: attempts,
		Ack: func(ctx context.Context) error {
			if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", q.table), id); err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("queue ack: %w", err)
			}
			return tx.Commit(ctx)
		},
		Nack: func(ctx context.Context) error {
			// Release the lease first; the increment has to land outside
			// the rolled-back transaction to survive it.
			if err := tx.Rollback(ctx); err != nil {
				return fmt.Errorf("queue nack: %w", err)
			}
			_, err := q.pool.Exec(ctx,
				fmt.Sprintf("UPDATE %s SET attempts = attempts + 1 WHERE id = $1", q.table), id)
			return err
		},
	}, nil
}

// MemQueue is an in-memory Consumer/Producer for tests. Nacked deliveries
// go back to the front of the queue with their attempt recorded.
type MemQueue struct {
	mu       sync.Mutex
	messages []memMessage
}

type memMessage struct {
	body     []byte
	attempts int
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(ctx context.Context, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, memMessage{body: append([]byte(nil), body...)})
	return nil
}

func (q *MemQueue) Receive(ctx context.Context) (*Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil
	}

	msg := q.messages[0]
	q.messages = q.messages[1:]

	return &Delivery{
		Body:     msg.body,
		Attempts: msg.attempts,
		Ack:      func(ctx context.Context) error { return nil },
		Nack: func(ctx context.Context) error {
			q.mu.Lock()
			defer q.mu.Unlock()
			msg.attempts++
			q.messages = append([]memMessage{msg}, q.messages...)
			return nil
		},
	}, nil
}

// Len reports the number of pending messages; test helper.
func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}
