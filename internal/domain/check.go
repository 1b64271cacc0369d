package domain

// CheckLine is one reviewed field of a CHECK message.
type CheckLine struct {
	Key        string     `json:"key"`
	Value      string     `json:"value"`
	Confidence Confidence `json:"confidence"`
	Required   bool       `json:"required"`
	Warning    string     `json:"warning,omitempty"`
}

// CheckMessage is the operator review projection of a draft. It is always
// rebuilt from a Draft and its version, never edited by hand.
type CheckMessage struct {
	DealID       string      `json:"deal_id"`
	DraftVersion int         `json:"draft_version"`
	State        DealState   `json:"state"`
	SummaryTitle string      `json:"summary_title"`
	Lines        []CheckLine `json:"lines"`
	Instructions []string    `json:"instructions"`
}
