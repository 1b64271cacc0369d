package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is matched by every ValidationError
	ErrValidation = errors.New("draft validation failed")

	// ErrEdit is matched by every EditError
	ErrEdit = errors.New("edit rejected")

	// ErrInvalidCommand is returned when an operator reply committed to
	// edit parsing contains a malformed line
	ErrInvalidCommand = errors.New("invalid operator command")

	// ErrDealNotFound is returned when no session exists for a deal id
	ErrDealNotFound = errors.New("deal not found")

	// ErrDealExists is returned when creating a session whose deal id is taken
	ErrDealExists = errors.New("deal already exists")

	// ErrStatePrecondition is returned when a transition is not allowed from
	// the session's current state
	ErrStatePrecondition = errors.New("deal state precondition failed")

	// ErrMetaobjectNotFound is returned when no catalog entry matches a label
	ErrMetaobjectNotFound = errors.New("unresolved metaobject")

	// ErrMetaobjectAmbiguous is returned in strict mode when several catalog
	// entries match a label
	ErrMetaobjectAmbiguous = errors.New("ambiguous metaobject match")

	// ErrUnconfigured is returned when required external configuration is absent
	ErrUnconfigured = errors.New("required configuration missing")

	// ErrCacheMiss is returned by cache stores when no entry exists
	ErrCacheMiss = errors.New("cache miss")

	// ErrCatalogFailure is returned when the catalog search API fails
	ErrCatalogFailure = errors.New("catalog search failed")

	// ErrMessagingFailure is returned when an outbound message cannot be delivered
	ErrMessagingFailure = errors.New("outbound message failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")
)

// ValidationError lists every schema violation found in a draft.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Issues, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// EditError names the edit key (and value, when relevant) that caused an
// edit set to be rejected.
type EditError struct {
	Key    string
	Value  string
	Reason string
}

func (e *EditError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", ErrEdit, e.Reason)
	}
	return fmt.Sprintf("%s: %s %q", ErrEdit, e.Reason, e.Key)
}

func (e *EditError) Is(target error) bool { return target == ErrEdit }

// InvalidCommandError carries the offending reply line.
type InvalidCommandError struct {
	Line   string
	Reason string
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrInvalidCommand, e.Reason, e.Line)
}

func (e *InvalidCommandError) Is(target error) bool { return target == ErrInvalidCommand }

// StateError reports a transition attempted from the wrong state.
type StateError struct {
	DealID string
	State  DealState
	Want   []DealState
}

func (e *StateError) Error() string {
	want := make([]string, len(e.Want))
	for i, s := range e.Want {
		want[i] = string(s)
	}
	return fmt.Sprintf("%s: deal %s is %s, want %s", ErrStatePrecondition, e.DealID, e.State, strings.Join(want, " or "))
}

func (e *StateError) Is(target error) bool { return target == ErrStatePrecondition }

// FieldResolutionError reports which controlled field of a draft could not
// be resolved, so the operator knows which label to correct.
type FieldResolutionError struct {
	Field      MetaobjectField
	Label      string
	Kind       OutcomeKind
	Candidates []string
}

func (e *FieldResolutionError) Error() string {
	switch e.Kind {
	case OutcomeAmbiguous:
		return fmt.Sprintf("%s for %s %q: %s", ErrMetaobjectAmbiguous, e.Field, e.Label, strings.Join(e.Candidates, ", "))
	default:
		return fmt.Sprintf("%s for %s %q", ErrMetaobjectNotFound, e.Field, e.Label)
	}
}

func (e *FieldResolutionError) Is(target error) bool {
	switch e.Kind {
	case OutcomeAmbiguous:
		return target == ErrMetaobjectAmbiguous
	default:
		return target == ErrMetaobjectNotFound
	}
}

// ResolutionErrors collects per-field failures from a lenient resolution run.
type ResolutionErrors []*FieldResolutionError

func (e ResolutionErrors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (e ResolutionErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, fe := range e {
		errs[i] = fe
	}
	return errs
}
