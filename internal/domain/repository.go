package domain

import (
	"context"
	"time"
)

// SessionStore persists deal sessions. Update with IncrementVersion must
// read, increment and write draft_version as one atomic operation; it is the
// only guard against concurrent edits losing each other's version bump.
type SessionStore interface {
	Create(ctx context.Context, session *DealSession) error
	Get(ctx context.Context, dealID string) (*DealSession, error)
	Update(ctx context.Context, dealID string, patch DealPatch, opts UpdateOptions) (*DealSession, error)
	List(ctx context.Context, limit int) ([]*DealSession, error)
	// ListExpiring returns sessions still awaiting operator input whose
	// expires_at is at or before the given time.
	ListExpiring(ctx context.Context, before time.Time) ([]*DealSession, error)
}

// EventLog appends audit events; a duplicate EventID is a silent no-op.
type EventLog interface {
	Append(ctx context.Context, event *EventEnvelope) error
}

// ErrorLog records failures for later inspection.
type ErrorLog interface {
	Append(ctx context.Context, record *ErrorRecord) error
}

// CatalogSearch queries the catalog's metaobjects of one type.
type CatalogSearch interface {
	Search(ctx context.Context, typeHandle, query string, limit int) ([]Candidate, error)
}

// MetaobjectCache memoizes resolutions keyed by (shop, type, normalized label).
// Get returns ErrCacheMiss when no entry exists; Upsert is last-write-wins.
type MetaobjectCache interface {
	Get(ctx context.Context, shop, typeHandle, normalizedLabel string) (*MetaobjectCacheEntry, error)
	Upsert(ctx context.Context, entry *MetaobjectCacheEntry) error
}

// Messenger delivers plain text to an operator over a messaging channel.
type Messenger interface {
	SendText(ctx context.Context, recipient, body string) error
}

// LabelResolver maps a free-text label to a catalog metaobject.
type LabelResolver interface {
	Resolve(ctx context.Context, req ResolveRequest, mode ResolveMode) (Outcome, error)
}
