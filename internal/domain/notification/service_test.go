package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartmsg/internal/common"
)

// fakeStore is an in-memory DispatchStore.
type fakeStore struct {
	mu      sync.Mutex
	logs    map[string]*DispatchLog
	nextID  int
	updates []DispatchStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{logs: make(map[string]*DispatchLog)}
}

func (f *fakeStore) Create(ctx context.Context, log *DispatchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	log.ID = string(rune('a' + f.nextID - 1))
	log.CreatedAt = time.Now()
	log.UpdatedAt = log.CreatedAt
	stored := *log
	f.logs[log.ID] = &stored
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (*DispatchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[id], nil
}

func (f *fakeStore) GetByIdempotencyKey(ctx context.Context, key string) (*DispatchLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, log := range f.logs {
		if log.IdempotencyKey == key {
			return log, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status DispatchStatus, messageID int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, status)
	if log, ok := f.logs[id]; ok {
		log.Status = status
		log.MessageID = messageID
		log.ErrorMessage = errMsg
		log.UpdatedAt = time.Now()
	}
	return nil
}

func (f *fakeStore) List(ctx context.Context, filter ListFilter) ([]*DispatchLog, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*DispatchLog, 0, len(f.logs))
	for _, log := range f.logs {
		out = append(out, log)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*DispatchLog, error) {
	return nil, nil
}

type fakeEnqueuer struct {
	ids []string
	err error
}

func (f *fakeEnqueuer) EnqueueDispatch(logID string) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, logID)
	return nil
}

type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) Allow(ctx context.Context, chatID int64) (bool, error) {
	return f.allowed, nil
}

func smartRequest() *SendRequest {
	return &SendRequest{
		ChatID: 7,
		Smart: &SmartData{
			Role:     "user",
			MenuFile: "welcome",
			BlockKey: "greeting",
			Lang:     "en",
			Context:  map[string]string{"username": "Ana"},
		},
	}
}

func TestEnqueueSmartDispatch(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	svc := NewService(store, enqueuer, &fakeLimiter{allowed: true}, "bot", "main")

	resp, err := svc.Enqueue(context.Background(), smartRequest())
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if resp.Status != string(StatusQueued) {
		t.Fatalf("unexpected status: %q", resp.Status)
	}
	if len(enqueuer.ids) != 1 || enqueuer.ids[0] != resp.ID {
		t.Fatalf("task not enqueued: %v", enqueuer.ids)
	}

	stored, _ := store.GetByID(context.Background(), resp.ID)
	if stored == nil || stored.Smart == nil {
		t.Fatalf("log not persisted: %+v", stored)
	}
	if stored.Smart.Module != "bot" || stored.Smart.Namespace != "main" {
		t.Fatalf("smart defaults not applied: %+v", stored.Smart)
	}
}

func TestEnqueueRequiresTextOrSmart(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeEnqueuer{}, nil, "bot", "main")

	_, err := svc.Enqueue(context.Background(), &SendRequest{ChatID: 7})
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnqueueIncompleteSmart(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeEnqueuer{}, nil, "bot", "main")

	req := smartRequest()
	req.Smart.BlockKey = ""
	_, err := svc.Enqueue(context.Background(), req)
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestEnqueueIdempotency(t *testing.T) {
	store := newFakeStore()
	enqueuer := &fakeEnqueuer{}
	svc := NewService(store, enqueuer, nil, "bot", "main")

	req := smartRequest()
	req.IdempotencyKey = "key-1"

	first, err := svc.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	second, err := svc.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("idempotent request created a new log: %q vs %q", first.ID, second.ID)
	}
	if len(enqueuer.ids) != 1 {
		t.Fatalf("idempotent request enqueued again: %v", enqueuer.ids)
	}
}

func TestEnqueueRateLimited(t *testing.T) {
	svc := NewService(newFakeStore(), &fakeEnqueuer{}, &fakeLimiter{allowed: false}, "bot", "main")

	_, err := svc.Enqueue(context.Background(), smartRequest())
	var validation *common.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected rate limit ValidationError, got %v", err)
	}
}

func TestEnqueueFailureMarksLogFailed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, &fakeEnqueuer{err: errors.New("redis down")}, nil, "bot", "main")

	_, err := svc.Enqueue(context.Background(), smartRequest())
	if err == nil {
		t.Fatal("expected enqueue failure")
	}
	if len(store.updates) != 1 || store.updates[0] != StatusFailed {
		t.Fatalf("log not marked failed: %v", store.updates)
	}
}
