package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hotbags/backend/internal/domain"
	"github.com/hotbags/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	deals *usecase.DealService
}

// NewHandler creates a new HTTP handler
func NewHandler(deals *usecase.DealService) *Handler {
	return &Handler{deals: deals}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "hotbags-backend",
		"version": "1.0.0",
	})
}

// InboundRequest is the payload posted by the messaging gateway
type InboundRequest struct {
	EventID            string    `json:"event_id"`
	DealID             string    `json:"deal_id"`
	Source             string    `json:"source"`
	MessageType        string    `json:"message_type"`
	Text               string    `json:"text"`
	MediaCount         int       `json:"media_count"`
	From               string    `json:"from" binding:"required"`
	MessageID          string    `json:"message_id" binding:"required"`
	OccurredAt         time.Time `json:"occurred_at"`
	TransportSessionID string    `json:"transport_session_id"`
}

// GatewayCommand is an instruction returned to the gateway
type GatewayCommand struct {
	CommandID string `json:"command_id"`
	Type      string `json:"type"`
	Text      string `json:"text"`
}

// sourceText falls back to a placeholder for payloads without text
func (r InboundRequest) sourceText() string {
	if r.Text != "" {
		return r.Text
	}
	if r.MediaCount > 0 {
		return fmt.Sprintf("[image:%d]", r.MediaCount)
	}
	return "[type:unknown]"
}

func (r InboundRequest) isText() bool {
	return r.Text != "" && (r.MessageType == "" || r.MessageType == "text")
}

// HandleInbound ingests one gateway message and returns the commands to run
func (h *Handler) HandleInbound(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	result, err := h.deals.HandleInbound(c.Request.Context(), usecase.InboundMessage{
		EventID:            req.EventID,
		DealID:             req.DealID,
		Source:             domain.EventSource(req.Source),
		Text:               req.sourceText(),
		From:               req.From,
		MessageID:          req.MessageID,
		OccurredAt:         req.OccurredAt,
		TransportSessionID: req.TransportSessionID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	commands := []GatewayCommand{}
	if req.isText() && !result.Duplicate {
		commands = append(commands, GatewayCommand{
			CommandID: uuid.NewString(),
			Type:      "send_text",
			Text:      usecase.RenderCheckText(result.Check),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":        true,
		"deal_id":   result.Session.DealID,
		"created":   result.Created,
		"duplicate": result.Duplicate,
		"commands":  commands,
	})
}

type createDealRequest struct {
	DealID     string `json:"deal_id" binding:"required"`
	SourceText string `json:"source_text" binding:"required"`
}

// CreateDeal creates a session from an explicit source text
func (h *Handler) CreateDeal(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req createDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	view, err := h.deals.CreateDeal(c.Request.Context(), req.DealID, req.SourceText)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"deal":  view.Session,
		"check": view.Check,
		"text":  usecase.RenderCheckText(view.Check),
	})
}

// ListDeals returns recent sessions, newest first
func (h *Handler) ListDeals(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest))
			return
		}
		limit = n
	}

	sessions, err := h.deals.ListDeals(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*domain.DealSession{}
	}
	c.JSON(http.StatusOK, gin.H{"deals": sessions, "count": len(sessions)})
}

// GetDeal returns a session with its current CHECK message
func (h *Handler) GetDeal(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	view, err := h.deals.GetDeal(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deal":  view.Session,
		"check": view.Check,
		"text":  usecase.RenderCheckText(view.Check),
	})
}

type replyRequest struct {
	Text string `json:"text" binding:"required"`
}

// Reply applies an operator reply (YES, CANCEL or edits)
func (h *Handler) Reply(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	result, err := h.deals.Reply(c.Request.Context(), c.Param("deal_id"), req.Text)
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{
		"deal":    result.Session,
		"status":  result.Status,
		"command": result.Command,
	}
	if result.Check != nil {
		body["check"] = result.Check
		body["text"] = usecase.RenderCheckText(result.Check)
	}
	if len(result.Diff) > 0 {
		body["diff"] = result.Diff
	}
	c.JSON(http.StatusOK, body)
}

// Resolve maps the draft's controlled labels to catalog metaobject ids
func (h *Handler) Resolve(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	mode := domain.ResolveMode(c.DefaultQuery("mode", string(domain.ResolveStrict)))
	if mode != domain.ResolveStrict && mode != domain.ResolveLenient {
		respondError(c, fmt.Errorf("%w: mode must be strict or lenient", domain.ErrInvalidRequest))
		return
	}

	result, err := h.deals.ResolveMetaobjects(c.Request.Context(), c.Param("deal_id"), mode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deal":     result.Session,
		"resolved": result.Resolved,
	})
}

// MarkPublished records that the deal was published to the catalog
func (h *Handler) MarkPublished(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	session, err := h.deals.MarkPublished(c.Request.Context(), c.Param("deal_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": session})
}

type previewRequest struct {
	DealID     string `json:"deal_id"`
	SourceText string `json:"source_text" binding:"required"`
}

// PreviewCheck builds a CHECK message without creating a session
func (h *Handler) PreviewCheck(c *gin.Context) {
	if !h.ready(c) {
		return
	}
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err))
		return
	}

	check := h.deals.PreviewCheck(req.DealID, req.SourceText)
	c.JSON(http.StatusOK, gin.H{
		"check": check,
		"text":  usecase.RenderCheckText(check),
	})
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.deals == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "deal service not configured"})
		return false
	}
	return true
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDealNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMetaobjectAmbiguous):
		return http.StatusConflict
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEdit),
		errors.Is(err, domain.ErrInvalidCommand),
		errors.Is(err, domain.ErrMetaobjectNotFound),
		errors.Is(err, domain.ErrStatePrecondition),
		errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrDealExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCatalogFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}

	body := gin.H{"error": err.Error()}

	var editErr *domain.EditError
	var fieldErr *domain.FieldResolutionError
	var fieldErrs domain.ResolutionErrors
	var validationErr *domain.ValidationError
	var stateErr *domain.StateError
	switch {
	case errors.As(err, &fieldErrs):
		failures := make([]gin.H, len(fieldErrs))
		for i, fe := range fieldErrs {
			failures[i] = fieldFailure(fe)
		}
		body["failures"] = failures
	case errors.As(err, &fieldErr):
		for k, v := range fieldFailure(fieldErr) {
			body[k] = v
		}
	case errors.As(err, &editErr):
		body["key"] = editErr.Key
		if editErr.Value != "" {
			body["value"] = editErr.Value
		}
	case errors.As(err, &validationErr):
		body["issues"] = validationErr.Issues
	case errors.As(err, &stateErr):
		body["state"] = stateErr.State
	}

	c.JSON(status, body)
}

func fieldFailure(fe *domain.FieldResolutionError) gin.H {
	h := gin.H{"field": fe.Field, "label": fe.Label, "kind": fe.Kind}
	if len(fe.Candidates) > 0 {
		h["candidates"] = fe.Candidates
	}
	return h
}
