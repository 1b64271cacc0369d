package domain

// Intent is what an operator reply asks for.
type Intent string

const (
	IntentYes     Intent = "YES"
	IntentCancel  Intent = "CANCEL"
	IntentEdit    Intent = "EDIT"
	IntentUnknown Intent = "UNKNOWN"
)

// OperatorCommand is the parsed form of an operator reply.
type OperatorCommand struct {
	Intent Intent            `json:"intent"`
	Edits  map[string]string `json:"edits"`
}
