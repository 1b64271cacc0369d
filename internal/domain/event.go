package domain

import (
	"encoding/json"
	"time"
)

// EventSource names the system an automation event came from.
type EventSource string

const (
	EventSourceWhatsApp EventSource = "whatsapp"
	EventSourceGateway  EventSource = "clawdbot"
	EventSourceShopify  EventSource = "shopify"
	EventSourceInternal EventSource = "internal"
)

// Event types written by the deal workflow.
const (
	EventMessageReceived        = "whatsapp.message"
	EventDealCreated            = "deal.created"
	EventDealMerged             = "deal.merged"
	EventOperatorReplyReceived  = "deal.operator_reply_received"
	EventDealUpdated            = "deal.updated"
	EventDealExpired            = "deal.expired"
	EventDealPublished          = "deal.published"
	EventCheckSendFailed        = "deal.check_send_failed"
	EventMetaobjectResolveStart = "metaobject.resolve_attempt"
	EventMetaobjectResolveOK    = "metaobject.resolve_success"
	EventMetaobjectResolveFail  = "metaobject.resolve_failure"
	EventMetaobjectResolveWarn  = "metaobject.resolve_warning"
)

// EventEnvelope is an append-only audit record, idempotent on EventID.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	Source        EventSource     `json:"source"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	Shop          string          `json:"shop,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// ErrorRecord is a best-effort failure log row.
type ErrorRecord struct {
	CorrelationID string          `json:"correlation_id"`
	EventID       string          `json:"event_id,omitempty"`
	Service       string          `json:"service"`
	ErrorCode     string          `json:"error_code"`
	Message       string          `json:"message"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
