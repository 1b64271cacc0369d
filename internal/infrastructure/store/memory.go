package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hotbags/backend/internal/domain"
)

// MemorySessionStore keeps deal sessions in a map guarded by a mutex.
// Sessions are copied on the way in and out so callers never share state.
type MemorySessionStore struct {
	sessions map[string]domain.DealSession
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewMemorySessionStore creates an empty session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]domain.DealSession),
		now:      time.Now,
	}
}

func cloneSession(s domain.DealSession) *domain.DealSession {
	s.SourceMessageIDs = append([]string(nil), s.SourceMessageIDs...)
	return &s
}

func (m *MemorySessionStore) Create(ctx context.Context, session *domain.DealSession) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if err := session.Draft.Validate(); err != nil {
		return err
	}
	if _, exists := m.sessions[session.DealID]; exists {
		return domain.ErrDealExists
	}
	m.sessions[session.DealID] = *cloneSession(*session)
	return nil
}

func (m *MemorySessionStore) Get(ctx context.Context, dealID string) (*domain.DealSession, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, exists := m.sessions[dealID]
	if !exists {
		return nil, domain.ErrDealNotFound
	}
	return cloneSession(s), nil
}

// Update applies the patch under the write lock, so the state guard, the
// version bump and the patch land together. A patch that would leave an
// invalid draft is rejected and nothing is written.
func (m *MemorySessionStore) Update(ctx context.Context, dealID string, patch domain.DealPatch, opts domain.UpdateOptions) (*domain.DealSession, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	s, exists := m.sessions[dealID]
	if !exists {
		return nil, domain.ErrDealNotFound
	}
	if err := patch.CheckState(dealID, s.State); err != nil {
		return nil, err
	}
	s = *cloneSession(s)
	patch.Apply(&s)
	if err := s.Draft.Validate(); err != nil {
		return nil, err
	}
	if opts.IncrementVersion {
		s.DraftVersion++
	}
	s.UpdatedAt = m.now().UTC()
	m.sessions[dealID] = s
	return cloneSession(s), nil
}

// List returns up to limit sessions, most recently updated first.
func (m *MemorySessionStore) List(ctx context.Context, limit int) ([]*domain.DealSession, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]*domain.DealSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].DealID < out[j].DealID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemorySessionStore) ListExpiring(ctx context.Context, before time.Time) ([]*domain.DealSession, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var out []*domain.DealSession
	for _, s := range m.sessions {
		if !awaitingOperator(s.State) || s.ExpiresAt.After(before) {
			continue
		}
		out = append(out, cloneSession(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DealID < out[j].DealID })
	return out, nil
}

func awaitingOperator(state domain.DealState) bool {
	return state == domain.StateDraft || state == domain.StateAwaitingConfirmation
}

// MemoryEventLog is an append-only event list, idempotent on EventID.
type MemoryEventLog struct {
	events []domain.EventEnvelope
	seen   map[string]bool
	mutex  sync.RWMutex
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{seen: make(map[string]bool)}
}

func (l *MemoryEventLog) Append(ctx context.Context, event *domain.EventEnvelope) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.seen[event.EventID] {
		return nil
	}
	l.seen[event.EventID] = true
	l.events = append(l.events, *event)
	return nil
}

// Events returns a snapshot of every appended event in order.
func (l *MemoryEventLog) Events() []domain.EventEnvelope {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return append([]domain.EventEnvelope(nil), l.events...)
}

// MemoryErrorLog collects error records in memory.
type MemoryErrorLog struct {
	records []domain.ErrorRecord
	mutex   sync.RWMutex
}

func NewMemoryErrorLog() *MemoryErrorLog {
	return &MemoryErrorLog{}
}

func (l *MemoryErrorLog) Append(ctx context.Context, record *domain.ErrorRecord) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.records = append(l.records, *record)
	return nil
}

// Records returns a snapshot of every error record.
func (l *MemoryErrorLog) Records() []domain.ErrorRecord {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return append([]domain.ErrorRecord(nil), l.records...)
}
