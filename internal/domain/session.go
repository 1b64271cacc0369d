package domain

import "time"

// DealState is a position in the deal lifecycle.
type DealState string

const (
	StateDraft                DealState = "draft"
	StateAwaitingConfirmation DealState = "awaiting_confirmation"
	StateConfirmed            DealState = "confirmed"
	StateCancelled            DealState = "cancelled"
	StateExpired              DealState = "expired"
	StatePublished            DealState = "published"
)

// Terminal reports whether the state is driven by an external collaborator
// and accepts no further operator input.
func (s DealState) Terminal() bool {
	return s == StateExpired || s == StatePublished
}

// Valid reports whether s is a known state.
func (s DealState) Valid() bool {
	switch s {
	case StateDraft, StateAwaitingConfirmation, StateConfirmed, StateCancelled, StateExpired, StatePublished:
		return true
	}
	return false
}

// DealSession is the persisted aggregate for one deal.
type DealSession struct {
	DealID           string    `json:"deal_id"`
	CorrelationID    string    `json:"correlation_id"`
	State            DealState `json:"state"`
	OperatorID       string    `json:"operator_id,omitempty"`
	SourceMessageIDs []string  `json:"source_message_ids"`
	Draft            Draft     `json:"draft_product"`
	DraftVersion     int       `json:"draft_version"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// HasMessage reports whether a transport message id was already merged.
func (s *DealSession) HasMessage(id string) bool {
	for _, m := range s.SourceMessageIDs {
		if m == id {
			return true
		}
	}
	return false
}

// DealPatch lists the session attributes to overwrite; nil fields are kept.
type DealPatch struct {
	State            *DealState
	OperatorID       *string
	SourceMessageIDs []string
	Draft            *Draft
	ExpiresAt        *time.Time

	// FromStates, when set, is checked by the store inside the same atomic
	// update: the patch only applies if the stored state is one of them.
	FromStates []DealState
}

// CheckState returns a StateError if the patch is guarded and current is not
// an allowed starting state.
func (p DealPatch) CheckState(dealID string, current DealState) error {
	if len(p.FromStates) == 0 {
		return nil
	}
	for _, s := range p.FromStates {
		if s == current {
			return nil
		}
	}
	return &StateError{DealID: dealID, State: current, Want: append([]DealState(nil), p.FromStates...)}
}

// UpdateOptions controls how a patch is applied.
type UpdateOptions struct {
	// IncrementVersion bumps draft_version in the same atomic operation
	// that applies the patch.
	IncrementVersion bool
}

// UnionMessageIDs returns existing plus id, keeping order and dropping duplicates.
func UnionMessageIDs(existing []string, ids ...string) []string {
	seen := make(map[string]bool, len(existing)+len(ids))
	out := make([]string, 0, len(existing)+len(ids))
	for _, list := range [][]string{existing, ids} {
		for _, id := range list {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Apply overwrites the session attributes named by the patch. Version and
// timestamps are left to the store.
func (p DealPatch) Apply(s *DealSession) {
	if p.State != nil {
		s.State = *p.State
	}
	if p.OperatorID != nil {
		s.OperatorID = *p.OperatorID
	}
	if p.SourceMessageIDs != nil {
		s.SourceMessageIDs = append([]string(nil), p.SourceMessageIDs...)
	}
	if p.Draft != nil {
		s.Draft = *p.Draft
	}
	if p.ExpiresAt != nil {
		s.ExpiresAt = *p.ExpiresAt
	}
}
