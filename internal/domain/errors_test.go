package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"validation", &ValidationError{Issues: []string{"x"}}, ErrValidation},
		{"edit", &EditError{Key: "unknown_key", Reason: "unsupported edit key"}, ErrEdit},
		{"invalid command", &InvalidCommandError{Line: "oops", Reason: "missing ="}, ErrInvalidCommand},
		{"state", &StateError{DealID: "d1", State: StateDraft, Want: []DealState{StateConfirmed}}, ErrStatePrecondition},
		{"not found", &FieldResolutionError{Field: FieldColour, Label: "Noir", Kind: OutcomeNotFound}, ErrMetaobjectNotFound},
		{"ambiguous", &FieldResolutionError{Field: FieldMaterial, Label: "Togo", Kind: OutcomeAmbiguous}, ErrMetaobjectAmbiguous},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("handling deal: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.target))
		})
	}
}

func TestEditError_NamesKey(t *testing.T) {
	err := &EditError{Key: "unknown_key", Reason: "unsupported edit key"}
	assert.Contains(t, err.Error(), "unknown_key")
}

func TestFieldResolutionError_ListsCandidates(t *testing.T) {
	err := &FieldResolutionError{
		Field:      FieldColour,
		Label:      "Black",
		Kind:       OutcomeAmbiguous,
		Candidates: []string{"Gold Hardware Black", "Palladium Hardware Black"},
	}
	assert.Contains(t, err.Error(), "hermes_colour")
	assert.Contains(t, err.Error(), "Palladium Hardware Black")
	assert.False(t, errors.Is(err, ErrMetaobjectNotFound))
}

func TestResolutionErrors_Unwrap(t *testing.T) {
	errs := ResolutionErrors{
		{Field: FieldColour, Label: "Noir", Kind: OutcomeNotFound},
		{Field: FieldMaterial, Label: "Togo", Kind: OutcomeAmbiguous, Candidates: []string{"Togo", "TOGO"}},
	}
	var err error = errs

	assert.True(t, errors.Is(err, ErrMetaobjectNotFound))
	assert.True(t, errors.Is(err, ErrMetaobjectAmbiguous))

	var fe *FieldResolutionError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, FieldColour, fe.Field)
}

func TestUnionMessageIDs(t *testing.T) {
	got := UnionMessageIDs([]string{"a", "b"}, "b", "c", "")
	assert.Equal(t, []string{"a", "b", "c"}, got)

	s := &DealSession{SourceMessageIDs: got}
	assert.True(t, s.HasMessage("c"))
	assert.False(t, s.HasMessage("d"))
}

func TestDealState(t *testing.T) {
	assert.True(t, StateExpired.Terminal())
	assert.True(t, StatePublished.Terminal())
	assert.False(t, StateConfirmed.Terminal())
	assert.True(t, StateAwaitingConfirmation.Valid())
	assert.False(t, DealState("archived").Valid())
}
