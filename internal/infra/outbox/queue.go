package outbox

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	appoutbox "mujthriftz/internal/app/outbox"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

var ErrRecordNotFound = errors.New("outbox: record not found")

// Record is a stored outbox entry with its delivery state.
type Record struct {
	ID          string            `bson:"_id"`
	Name        string            `bson:"name"`
	Payload     []byte            `bson:"payload"`
	OccurredAt  time.Time         `bson:"occurred_at"`
	Aggregate   string            `bson:"aggregate"`
	Headers     map[string]string `bson:"headers"`
	State       string            `bson:"state"`
	Attempts    int               `bson:"attempts"`
	NextAttempt time.Time         `bson:"next_attempt_at"`
	ClaimedBy   string            `bson:"claimed_by"`
	ClaimedAt   time.Time         `bson:"claimed_at"`
	SentAt      time.Time         `bson:"sent_at"`
	LastError   string            `bson:"last_error"`
	CreatedAt   time.Time         `bson:"created_at"`
}

// Queue is an outbox that a Worker can drain. Add persists immediately, so Flush is a no-op.
type Queue interface {
	appoutbox.Outbox
	// Claim returns the oldest due record or nil when nothing is due.
	Claim(ctx context.Context, workerID string, now time.Time) (*Record, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

// MemoryQueue keeps records in process. Used when MONGO_URI is unset.
type MemoryQueue struct {
	mu      sync.Mutex
	records map[string]*Record
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{records: make(map[string]*Record), now: time.Now}
}

func (q *MemoryQueue) Add(_ context.Context, record appoutbox.EventRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now().UTC()
	q.records[record.ID] = &Record{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     append([]byte(nil), record.Payload...),
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return nil
}

func (q *MemoryQueue) Flush(context.Context) error { return nil }

func (q *MemoryQueue) Claim(_ context.Context, workerID string, now time.Time) (*Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*Record
	for _, rec := range q.records {
		if (rec.State == stateNew || rec.State == stateFailed) && !rec.NextAttempt.After(now) {
			due = append(due, rec)
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	rec := due[0]
	rec.State = stateClaimed
	rec.ClaimedBy = workerID
	rec.ClaimedAt = now
	out := *rec
	return &out, nil
}

func (q *MemoryQueue) MarkSent(_ context.Context, id string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.State = stateSent
	rec.SentAt = at
	return nil
}

func (q *MemoryQueue) MarkFailed(_ context.Context, id string, next time.Time, errMsg string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	rec.State = stateFailed
	rec.NextAttempt = next
	rec.LastError = errMsg
	rec.Attempts++
	return nil
}

// Snapshot returns a copy of a record, for inspection in tests and admin tooling.
func (q *MemoryQueue) Snapshot(id string) (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rec, ok := q.records[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

var _ Queue = (*MemoryQueue)(nil)
