package alerts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store persists alerts. Every owner-facing method is scoped to the owner.
type Store interface {
	List(ctx context.Context, owner string) ([]JobAlert, error)
	ListActive(ctx context.Context) ([]JobAlert, error)
	Get(ctx context.Context, owner, id string) (*JobAlert, error)
	Create(ctx context.Context, a *JobAlert) error
	// Update returns ErrNotFound when no alert with a.ID belongs to a.Owner.
	Update(ctx context.Context, a *JobAlert) error
	// Delete succeeds whether or not the alert existed.
	Delete(ctx context.Context, owner, id string) error
	MarkChecked(ctx context.Context, id string, at time.Time) error
}

// MemoryStore keeps alerts in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	alerts map[string]JobAlert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]JobAlert)}
}

func (m *MemoryStore) List(_ context.Context, owner string) ([]JobAlert, error) {
	return m.filter(func(a JobAlert) bool { return a.Owner == owner }), nil
}

func (m *MemoryStore) ListActive(_ context.Context) ([]JobAlert, error) {
	return m.filter(func(a JobAlert) bool { return a.Active }), nil
}

func (m *MemoryStore) filter(keep func(JobAlert) bool) []JobAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]JobAlert, 0)
	for _, a := range m.alerts {
		if keep(a) {
			out = append(out, copyAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *MemoryStore) Get(_ context.Context, owner, id string) (*JobAlert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.alerts[id]
	if !ok || a.Owner != owner {
		return nil, ErrNotFound
	}
	a = copyAlert(a)
	return &a, nil
}

func (m *MemoryStore) Create(_ context.Context, a *JobAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[a.ID] = copyAlert(*a)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, a *JobAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.alerts[a.ID]
	if !ok || current.Owner != a.Owner {
		return ErrNotFound
	}
	m.alerts[a.ID] = copyAlert(*a)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.alerts[id]; ok && a.Owner == owner {
		delete(m.alerts, id)
	}
	return nil
}

func (m *MemoryStore) MarkChecked(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.LastCheckedAt = &at
	m.alerts[id] = a
	return nil
}

func copyAlert(a JobAlert) JobAlert {
	if a.LastCheckedAt != nil {
		at := *a.LastCheckedAt
		a.LastCheckedAt = &at
	}
	return a
}
