package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/hotbags/backend/internal/domain"
)

// MockMetaobjectCache is a mock implementation of domain.MetaobjectCache
type MockMetaobjectCache struct {
	mu          sync.Mutex
	data        map[string]domain.MetaobjectCacheEntry
	getError    error
	upsertError error
	upserts     int
}

func NewMockMetaobjectCache() *MockMetaobjectCache {
	return &MockMetaobjectCache{data: make(map[string]domain.MetaobjectCacheEntry)}
}

func cacheKey(shop, typeHandle, label string) string {
	return shop + "|" + typeHandle + "|" + label
}

func (m *MockMetaobjectCache) Get(ctx context.Context, shop, typeHandle, normalizedLabel string) (*domain.MetaobjectCacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	entry, ok := m.data[cacheKey(shop, typeHandle, normalizedLabel)]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}

func (m *MockMetaobjectCache) Upsert(ctx context.Context, entry *domain.MetaobjectCacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertError != nil {
		return m.upsertError
	}
	m.data[cacheKey(entry.Shop, entry.TypeHandle, entry.NormalizedLabel)] = *entry
	return nil
}

type searchCall struct {
	typeHandle string
	query      string
	limit      int
}

// MockCatalogSearch is a mock implementation of domain.CatalogSearch
type MockCatalogSearch struct {
	mu          sync.Mutex
	results     map[string][]domain.Candidate
	searchError error
	calls       []searchCall
}

func NewMockCatalogSearch() *MockCatalogSearch {
	return &MockCatalogSearch{results: make(map[string][]domain.Candidate)}
}

func (m *MockCatalogSearch) Search(ctx context.Context, typeHandle, query string, limit int) ([]domain.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, searchCall{typeHandle: typeHandle, query: query, limit: limit})
	if m.searchError != nil {
		return nil, m.searchError
	}
	return m.results[typeHandle], nil
}

func (m *MockCatalogSearch) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockEventLog is a mock implementation of domain.EventLog
type MockEventLog struct {
	mu          sync.Mutex
	events      []*domain.EventEnvelope
	seen        map[string]bool
	appendError error
}

func NewMockEventLog() *MockEventLog {
	return &MockEventLog{seen: make(map[string]bool)}
}

func (m *MockEventLog) Append(ctx context.Context, event *domain.EventEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendError != nil {
		return m.appendError
	}
	if m.seen[event.EventID] {
		return nil
	}
	m.seen[event.EventID] = true
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventLog) ofType(eventType string) []*domain.EventEnvelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.EventEnvelope
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func eventData(e *domain.EventEnvelope) map[string]interface{} {
	var data map[string]interface{}
	_ = json.Unmarshal(e.Data, &data)
	return data
}

// MockErrorLog is a mock implementation of domain.ErrorLog
type MockErrorLog struct {
	mu      sync.Mutex
	records []*domain.ErrorRecord
}

func (m *MockErrorLog) Append(ctx context.Context, record *domain.ErrorRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *MockErrorLog) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, r := range m.records {
		out[i] = r.ErrorCode
	}
	return out
}

// MockSessionStore is a mock implementation of domain.SessionStore
type MockSessionStore struct {
	mu          sync.Mutex
	sessions    map[string]domain.DealSession
	updateError error
	updates     int

	// afterListExpiring and beforeUpdate run outside the lock, letting a test
	// interleave another operation with the one under test.
	afterListExpiring func()
	beforeUpdate      func(dealID string)
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]domain.DealSession)}
}

func (m *MockSessionStore) Create(ctx context.Context, session *domain.DealSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.DealID]; ok {
		return domain.ErrDealExists
	}
	m.sessions[session.DealID] = *session
	return nil
}

func (m *MockSessionStore) Get(ctx context.Context, dealID string) (*domain.DealSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[dealID]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	return &s, nil
}

func (m *MockSessionStore) Update(ctx context.Context, dealID string, patch domain.DealPatch, opts domain.UpdateOptions) (*domain.DealSession, error) {
	if hook := m.takeBeforeUpdate(); hook != nil {
		hook(dealID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateError != nil {
		return nil, m.updateError
	}
	s, ok := m.sessions[dealID]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	if err := patch.CheckState(dealID, s.State); err != nil {
		return nil, err
	}
	patch.Apply(&s)
	if opts.IncrementVersion {
		s.DraftVersion++
	}
	m.sessions[dealID] = s
	return &s, nil
}

func (m *MockSessionStore) List(ctx context.Context, limit int) ([]*domain.DealSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.DealSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DealID < out[j].DealID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSessionStore) ListExpiring(ctx context.Context, before time.Time) ([]*domain.DealSession, error) {
	m.mu.Lock()
	var out []*domain.DealSession
	for _, s := range m.sessions {
		s := s
		if (s.State == domain.StateDraft || s.State == domain.StateAwaitingConfirmation) && !s.ExpiresAt.After(before) {
			out = append(out, &s)
		}
	}
	hook := m.afterListExpiring
	m.afterListExpiring = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

// takeBeforeUpdate returns the pending hook and clears it so it fires once.
func (m *MockSessionStore) takeBeforeUpdate() func(dealID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hook := m.beforeUpdate
	m.beforeUpdate = nil
	return hook
}

func (m *MockSessionStore) put(s domain.DealSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.DealID] = s
}

// MockMessenger is a mock implementation of domain.Messenger
type MockMessenger struct {
	mu        sync.Mutex
	sent      []string
	recipient string
	sendError error
}

func (m *MockMessenger) SendText(ctx context.Context, recipient, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendError != nil {
		return m.sendError
	}
	m.recipient = recipient
	m.sent = append(m.sent, body)
	return nil
}

// MockLabelResolver is a mock implementation of domain.LabelResolver keyed by type handle
type MockLabelResolver struct {
	mu       sync.Mutex
	outcomes map[string]domain.Outcome
	errs     map[string]error
	modes    []domain.ResolveMode
	requests []domain.ResolveRequest
}

func NewMockLabelResolver() *MockLabelResolver {
	return &MockLabelResolver{outcomes: make(map[string]domain.Outcome), errs: make(map[string]error)}
}

func (m *MockLabelResolver) Resolve(ctx context.Context, req domain.ResolveRequest, mode domain.ResolveMode) (domain.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes = append(m.modes, mode)
	m.requests = append(m.requests, req)
	if err := m.errs[req.TypeHandle]; err != nil {
		return domain.Outcome{}, err
	}
	out, ok := m.outcomes[req.TypeHandle]
	if !ok {
		return domain.Outcome{Kind: domain.OutcomeNotFound}, nil
	}
	return out, nil
}
