package domain

import "time"

// Candidate is a catalog metaobject returned by a search.
type Candidate struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// MetaobjectCacheEntry memoizes a successful label resolution.
type MetaobjectCacheEntry struct {
	Shop            string    `json:"shop"`
	TypeHandle      string    `json:"type_handle"`
	NormalizedLabel string    `json:"normalized_label"`
	GID             string    `json:"gid"`
	InputLabel      string    `json:"input_label"`
	DisplayName     string    `json:"display_name"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResolveRequest identifies the label to resolve. CorrelationID tags the
// audit events written during resolution and defaults to Shop.
type ResolveRequest struct {
	Shop          string
	TypeHandle    string
	Label         string
	CorrelationID string
}

// Resolution is a label mapped to its canonical catalog identifier.
type Resolution struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	DisplayName string `json:"display_name"`
}

// ResolveMode selects how ambiguous matches are handled.
type ResolveMode string

const (
	// ResolveLenient picks the shortest display name among ambiguous matches.
	ResolveLenient ResolveMode = "lenient"
	// ResolveStrict reports ambiguous matches back to the caller.
	ResolveStrict ResolveMode = "strict"
)

// OutcomeKind tags the result of a resolution.
type OutcomeKind string

const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeNotFound  OutcomeKind = "not_found"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
)

// Outcome is the tagged result of resolving one label. Value is set only for
// OutcomeOK. Candidates lists every matching display name whenever more than
// one candidate matched, including a lenient auto-pick.
type Outcome struct {
	Kind       OutcomeKind
	Value      Resolution
	Candidates []string
	FromCache  bool
}
