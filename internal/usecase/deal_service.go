package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hotbags/backend/internal/domain"
)

// Service names written to the error log
const (
	serviceInbound = "deal-inbound"
	serviceDeals   = "deal-admin"
	serviceReply   = "deal-reply"
	serviceResolve = "deal-resolve"
	serviceNotify  = "deal-notify"
)

// Reply statuses returned to the caller
const (
	ReplyConfirmed = "CONFIRMED"
	ReplyCancelled = "CANCELLED"
	ReplyUpdated   = "UPDATED"
	ReplyUnknown   = "UNKNOWN"
)

// Operator replies are accepted in these states; expired and published
// sessions are closed to operator input.
var replyStates = []domain.DealState{
	domain.StateDraft,
	domain.StateAwaitingConfirmation,
	domain.StateConfirmed,
	domain.StateCancelled,
}

var (
	expirableStates = []domain.DealState{domain.StateDraft, domain.StateAwaitingConfirmation}
	confirmedStates = []domain.DealState{domain.StateConfirmed}
)

const (
	defaultDealTTL   = 15 * time.Minute
	defaultListLimit = 50
	maxListLimit     = 500
)

// DefaultMetaobjectTypes maps each controlled field to its catalog type handle.
func DefaultMetaobjectTypes() map[domain.MetaobjectField]string {
	return map[domain.MetaobjectField]string{
		domain.FieldColour:       "hermes_colour",
		domain.FieldMaterial:     "herm_s_material",
		domain.FieldHardware:     "hermes_hardware",
		domain.FieldConstruction: "hermes_construction",
	}
}

// DealServiceConfig holds configuration for the deal service
type DealServiceConfig struct {
	Shop               string
	MetaobjectTypes    map[domain.MetaobjectField]string
	TTL                time.Duration
	EnableDebugLogging bool
}

// DealService runs the deal lifecycle: inbound messages, operator replies,
// metaobject resolution, expiry and publish completion.
type DealService struct {
	sessions  domain.SessionStore
	events    domain.EventLog
	errorLog  domain.ErrorLog
	resolver  domain.LabelResolver
	messenger domain.Messenger
	extractor *Extractor

	shop               string
	types              map[domain.MetaobjectField]string
	ttl                time.Duration
	enableDebugLogging bool

	now   func() time.Time
	newID func() string
}

// NewDealService creates a new deal service with dependencies. messenger
// may be nil, in which case CHECK messages are only returned to the caller.
func NewDealService(
	sessions domain.SessionStore,
	events domain.EventLog,
	errorLog domain.ErrorLog,
	resolver domain.LabelResolver,
	messenger domain.Messenger,
	config DealServiceConfig,
) *DealService {
	types := DefaultMetaobjectTypes()
	for f, handle := range config.MetaobjectTypes {
		if handle != "" {
			types[f] = handle
		}
	}

	ttl := config.TTL
	if ttl <= 0 {
		ttl = defaultDealTTL
	}

	return &DealService{
		sessions:           sessions,
		events:             events,
		errorLog:           errorLog,
		resolver:           resolver,
		messenger:          messenger,
		extractor:          NewExtractor(config.EnableDebugLogging),
		shop:               config.Shop,
		types:              types,
		ttl:                ttl,
		enableDebugLogging: config.EnableDebugLogging,
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

// DealView is a session together with its current CHECK projection.
type DealView struct {
	Session *domain.DealSession
	Check   *domain.CheckMessage
}

// InboundMessage is one message delivered by the messaging gateway.
type InboundMessage struct {
	EventID            string
	DealID             string
	Source             domain.EventSource
	Text               string
	From               string
	MessageID          string
	OccurredAt         time.Time
	TransportSessionID string
}

// InboundResult reports what HandleInbound did with a message.
type InboundResult struct {
	Session   *domain.DealSession
	Check     *domain.CheckMessage
	Created   bool
	Duplicate bool
}

// ReplyResult reports the outcome of an operator reply. Check is nil for a
// confirmation.
type ReplyResult struct {
	Session *domain.DealSession
	Command domain.OperatorCommand
	Status  string
	Check   *domain.CheckMessage
	Diff    []string
}

// ResolveResult carries the session after a successful resolution and the
// resolution for each controlled field.
type ResolveResult struct {
	Session  *domain.DealSession
	Resolved map[domain.MetaobjectField]domain.Resolution
}

// PreviewCheck builds the CHECK message for a source text without persisting anything.
func (s *DealService) PreviewCheck(dealID, sourceText string) *domain.CheckMessage {
	if dealID == "" {
		dealID = "preview"
	}
	return BuildCheckMessage(dealID, 1, s.extractor.NewDraftFromSource(sourceText, "", ""))
}

// CreateDeal creates a session from an explicit source text and moves it to
// awaiting_confirmation, since the returned CHECK is what the operator reviews.
func (s *DealService) CreateDeal(ctx context.Context, dealID, sourceText string) (*DealView, error) {
	if dealID == "" {
		return nil, fmt.Errorf("%w: deal_id is required", domain.ErrInvalidRequest)
	}

	draft := s.extractor.NewDraftFromSource(sourceText, "", "")
	check := BuildCheckMessage(dealID, 1, draft)
	session := s.newSession(dealID, draft.WithLatestCheck(check), nil)

	if err := s.sessions.Create(ctx, session); err != nil {
		s.recordError(ctx, dealID, "", serviceDeals, "create_failed", err, nil)
		return nil, err
	}
	s.appendEvent(ctx, dealID, domain.EventDealCreated, map[string]interface{}{"deal_id": dealID, "draft_version": 1})

	awaiting := domain.StateAwaitingConfirmation
	updated, err := s.sessions.Update(ctx, dealID, domain.DealPatch{
		State:      &awaiting,
		FromStates: []domain.DealState{domain.StateDraft},
	}, domain.UpdateOptions{})
	if err != nil {
		s.recordError(ctx, dealID, "", serviceDeals, "update_failed", err, nil)
		return nil, err
	}
	s.appendEvent(ctx, dealID, domain.EventDealUpdated, map[string]interface{}{"deal_id": dealID, "state": awaiting})

	return &DealView{Session: updated, Check: check}, nil
}

// GetDeal returns a session and a freshly built CHECK message. A stored
// draft that no longer validates is reported, never rendered.
func (s *DealService) GetDeal(ctx context.Context, dealID string) (*DealView, error) {
	session, err := s.sessions.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if err := session.Draft.Validate(); err != nil {
		s.recordError(ctx, dealID, "", serviceDeals, "invalid_stored_draft", err, nil)
		return nil, err
	}
	return &DealView{Session: session, Check: BuildCheckMessage(session.DealID, session.DraftVersion, session.Draft)}, nil
}

// ListDeals returns the most recently updated sessions.
func (s *DealService) ListDeals(ctx context.Context, limit int) ([]*domain.DealSession, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.sessions.List(ctx, limit)
}

// HandleInbound logs an inbound message and creates or merges the deal it
// belongs to. The CHECK text is sent back to the sender after the session
// has been committed; a send failure is logged and never undoes the commit.
func (s *DealService) HandleInbound(ctx context.Context, msg InboundMessage) (*InboundResult, error) {
	if msg.From == "" || msg.MessageID == "" {
		return nil, fmt.Errorf("%w: from and message_id are required", domain.ErrInvalidRequest)
	}
	if msg.DealID == "" {
		msg.DealID = CorrelationID(msg.From, msg.MessageID)
	}
	if msg.EventID == "" {
		msg.EventID = s.newID()
	}
	if msg.Source == "" {
		msg.Source = domain.EventSourceWhatsApp
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = s.now()
	}

	data, _ := json.Marshal(map[string]interface{}{
		"message_id":           msg.MessageID,
		"from":                 msg.From,
		"source_text":          msg.Text,
		"transport_session_id": msg.TransportSessionID,
	})
	envelope := &domain.EventEnvelope{
		EventID:       msg.EventID,
		Source:        msg.Source,
		Type:          domain.EventMessageReceived,
		OccurredAt:    msg.OccurredAt.UTC(),
		CorrelationID: msg.DealID,
		Data:          data,
	}
	if err := s.events.Append(ctx, envelope); err != nil {
		log.Printf("[DEAL] inbound event append failed for %s: %v", msg.DealID, err)
		s.recordError(ctx, msg.DealID, msg.MessageID, serviceInbound, "log_event_failed", err, nil)
		return nil, fmt.Errorf("appending inbound event: %w", err)
	}

	result, err := s.createOrMerge(ctx, msg)
	if err != nil {
		log.Printf("[DEAL] inbound persist failed for %s: %v", msg.DealID, err)
		s.recordError(ctx, msg.DealID, msg.MessageID, serviceInbound, "persist_failed", err, nil)
		return nil, err
	}

	if !result.Duplicate {
		s.notify(ctx, msg.From, result.Check)
	}
	return result, nil
}

func (s *DealService) createOrMerge(ctx context.Context, msg InboundMessage) (*InboundResult, error) {
	existing, err := s.sessions.Get(ctx, msg.DealID)
	if errors.Is(err, domain.ErrDealNotFound) {
		result, createErr := s.createFromInbound(ctx, msg)
		if !errors.Is(createErr, domain.ErrDealExists) {
			return result, createErr
		}
		// lost a creation race, merge into the winner
		existing, err = s.sessions.Get(ctx, msg.DealID)
	}
	if err != nil {
		return nil, err
	}
	return s.mergeInbound(ctx, existing, msg)
}

func (s *DealService) createFromInbound(ctx context.Context, msg InboundMessage) (*InboundResult, error) {
	draft := s.extractor.NewDraftFromSource(msg.Text, msg.MessageID, msg.From)
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	check := BuildCheckMessage(msg.DealID, 1, draft)
	session := s.newSession(msg.DealID, draft.WithLatestCheck(check), []string{msg.MessageID})

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	if s.enableDebugLogging {
		log.Printf("[DEAL] created %s from message %s", msg.DealID, msg.MessageID)
	}
	s.appendEvent(ctx, msg.DealID, domain.EventDealCreated, map[string]interface{}{
		"deal_id":       msg.DealID,
		"message_id":    msg.MessageID,
		"draft_version": 1,
	})

	return &InboundResult{Session: session, Check: check, Created: true}, nil
}

// mergeInbound folds a follow-up message into an existing session. The
// draft version is left alone: only edits and resolutions bump it.
func (s *DealService) mergeInbound(ctx context.Context, existing *domain.DealSession, msg InboundMessage) (*InboundResult, error) {
	if existing.HasMessage(msg.MessageID) {
		if s.enableDebugLogging {
			log.Printf("[DEAL] message %s already merged into %s", msg.MessageID, existing.DealID)
		}
		check := BuildCheckMessage(existing.DealID, existing.DraftVersion, existing.Draft)
		return &InboundResult{Session: existing, Check: check, Duplicate: true}, nil
	}

	merged := existing.Draft
	merged.Provenance.SourceText = MergeSourceText(merged.Provenance.SourceText, msg.Text)
	merged.Provenance.SourceMessageID = msg.MessageID
	merged.Provenance.SourceChatID = msg.From

	check := BuildCheckMessage(existing.DealID, existing.DraftVersion, merged)
	merged = merged.WithLatestCheck(check)

	updated, err := s.sessions.Update(ctx, existing.DealID, domain.DealPatch{
		Draft:            &merged,
		SourceMessageIDs: domain.UnionMessageIDs(existing.SourceMessageIDs, msg.MessageID),
	}, domain.UpdateOptions{})
	if err != nil {
		return nil, err
	}
	s.appendEvent(ctx, existing.DealID, domain.EventDealMerged, map[string]interface{}{
		"deal_id":       existing.DealID,
		"message_id":    msg.MessageID,
		"draft_version": updated.DraftVersion,
	})

	return &InboundResult{Session: updated, Check: check}, nil
}

// Reply applies an operator reply to a deal.
func (s *DealService) Reply(ctx context.Context, dealID, text string) (*ReplyResult, error) {
	session, err := s.sessions.Get(ctx, dealID)
	if err != nil {
		s.recordError(ctx, dealID, "", serviceReply, "deal_lookup_failed", err, nil)
		return nil, err
	}

	s.appendEvent(ctx, dealID, domain.EventOperatorReplyReceived, map[string]interface{}{"deal_id": dealID, "text": text})

	if session.State.Terminal() {
		err := &domain.StateError{
			DealID: dealID,
			State:  session.State,
			Want:   replyStates,
		}
		s.recordError(ctx, dealID, "", serviceReply, "reply_rejected", err, nil)
		return nil, err
	}

	cmd, err := ParseOperatorCommand(text)
	if err != nil {
		s.recordError(ctx, dealID, "", serviceReply, "invalid_command", err, map[string]interface{}{"text": text})
		return nil, err
	}

	switch cmd.Intent {
	case domain.IntentYes:
		return s.transition(ctx, session, cmd, domain.StateConfirmed, ReplyConfirmed)
	case domain.IntentCancel:
		return s.transition(ctx, session, cmd, domain.StateCancelled, ReplyCancelled)
	case domain.IntentEdit:
		return s.edit(ctx, session, cmd)
	default:
		return &ReplyResult{
			Session: session,
			Command: cmd,
			Status:  ReplyUnknown,
			Check:   BuildCheckMessage(session.DealID, session.DraftVersion, session.Draft),
		}, nil
	}
}

// transition moves the session to a confirmed or cancelled state without
// touching the draft. A confirmation ends the review, so it carries no CHECK.
// The store rejects the write if the session was expired or published since
// it was read.
func (s *DealService) transition(ctx context.Context, session *domain.DealSession, cmd domain.OperatorCommand, target domain.DealState, status string) (*ReplyResult, error) {
	expiresAt := s.now().UTC().Add(s.ttl)
	updated, err := s.sessions.Update(ctx, session.DealID, domain.DealPatch{
		State:      &target,
		ExpiresAt:  &expiresAt,
		FromStates: replyStates,
	}, domain.UpdateOptions{})
	if err != nil {
		s.recordError(ctx, session.DealID, "", serviceReply, "update_failed", err, nil)
		return nil, err
	}
	s.appendEvent(ctx, session.DealID, domain.EventDealUpdated, map[string]interface{}{"deal_id": session.DealID, "state": target})

	result := &ReplyResult{Session: updated, Command: cmd, Status: status}
	if target != domain.StateConfirmed {
		result.Check = BuildCheckMessage(updated.DealID, updated.DraftVersion, updated.Draft)
	}
	return result, nil
}

func (s *DealService) edit(ctx context.Context, session *domain.DealSession, cmd domain.OperatorCommand) (*ReplyResult, error) {
	next, err := ApplyEdits(session.Draft, cmd.Edits)
	if err != nil {
		s.recordError(ctx, session.DealID, "", serviceReply, "edit_rejected", err, map[string]interface{}{"edits": cmd.Edits})
		return nil, err
	}

	awaiting := domain.StateAwaitingConfirmation
	expiresAt := s.now().UTC().Add(s.ttl)
	updated, err := s.sessions.Update(ctx, session.DealID, domain.DealPatch{
		State:      &awaiting,
		Draft:      &next,
		ExpiresAt:  &expiresAt,
		FromStates: replyStates,
	}, domain.UpdateOptions{IncrementVersion: true})
	if err != nil {
		s.recordError(ctx, session.DealID, "", serviceReply, "update_failed", err, nil)
		return nil, err
	}

	before := BuildCheckMessage(session.DealID, session.DraftVersion, session.Draft)
	check := BuildCheckMessage(updated.DealID, updated.DraftVersion, updated.Draft)
	diff := CheckTextDiff(RenderCheckText(before), RenderCheckText(check))

	keys := make([]string, 0, len(cmd.Edits))
	for k := range cmd.Edits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.appendEvent(ctx, session.DealID, domain.EventDealUpdated, map[string]interface{}{
		"deal_id":       session.DealID,
		"updated":       keys,
		"draft_version": updated.DraftVersion,
		"diff":          diff,
	})

	return &ReplyResult{Session: updated, Command: cmd, Status: ReplyUpdated, Check: check, Diff: diff}, nil
}

// ResolveMetaobjects resolves the four controlled fields of a confirmed deal
// and stores all ids in a single version-bumping update. In strict mode the
// first failing field aborts the others; in lenient mode every failing field
// is reported. Nothing is written unless all four fields resolve.
func (s *DealService) ResolveMetaobjects(ctx context.Context, dealID string, mode domain.ResolveMode) (*ResolveResult, error) {
	if mode == "" {
		mode = domain.ResolveStrict
	}

	session, err := s.sessions.Get(ctx, dealID)
	if err != nil {
		return nil, s.resolveFailed(ctx, dealID, err)
	}
	if session.State != domain.StateConfirmed {
		return nil, s.resolveFailed(ctx, dealID, &domain.StateError{
			DealID: dealID,
			State:  session.State,
			Want:   confirmedStates,
		})
	}

	s.appendEvent(ctx, dealID, domain.EventMetaobjectResolveStart, map[string]interface{}{"deal_id": dealID, "mode": mode})

	if s.shop == "" {
		return nil, s.resolveFailed(ctx, dealID, fmt.Errorf("%w: shopify.shop", domain.ErrUnconfigured))
	}

	var outcomes []domain.Outcome
	if mode == domain.ResolveLenient {
		outcomes, err = s.resolveLenient(ctx, session)
	} else {
		outcomes, err = s.resolveStrict(ctx, session)
	}
	if err != nil {
		return nil, s.resolveFailed(ctx, dealID, err)
	}

	ids := make(map[domain.MetaobjectField]string, len(domain.MetaobjectFields))
	resolved := make(map[domain.MetaobjectField]domain.Resolution, len(domain.MetaobjectFields))
	for i, f := range domain.MetaobjectFields {
		ids[f] = outcomes[i].Value.ID
		resolved[f] = outcomes[i].Value
	}

	draft := session.Draft.WithMetaobjectIDs(ids)
	updated, err := s.sessions.Update(ctx, dealID, domain.DealPatch{
		Draft:      &draft,
		FromStates: confirmedStates,
	}, domain.UpdateOptions{IncrementVersion: true})
	if err != nil {
		return nil, s.resolveFailed(ctx, dealID, err)
	}

	s.appendEvent(ctx, dealID, domain.EventMetaobjectResolveOK, map[string]interface{}{
		"deal_id":  dealID,
		"mode":     mode,
		"resolved": resolved,
	})
	log.Printf("[DEAL] resolved metaobjects for %s (version %d)", dealID, updated.DraftVersion)

	return &ResolveResult{Session: updated, Resolved: resolved}, nil
}

func (s *DealService) resolveStrict(ctx context.Context, session *domain.DealSession) ([]domain.Outcome, error) {
	outcomes := make([]domain.Outcome, len(domain.MetaobjectFields))
	g, gctx := errgroup.WithContext(ctx)

	for i, f := range domain.MetaobjectFields {
		g.Go(func() error {
			label := session.Draft.Metaobject(f).Label
			out, err := s.resolver.Resolve(gctx, s.resolveRequest(session, f, label), domain.ResolveStrict)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", f, err)
			}
			if out.Kind != domain.OutcomeOK {
				return &domain.FieldResolutionError{Field: f, Label: label, Kind: out.Kind, Candidates: out.Candidates}
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (s *DealService) resolveLenient(ctx context.Context, session *domain.DealSession) ([]domain.Outcome, error) {
	outcomes := make([]domain.Outcome, len(domain.MetaobjectFields))
	var g errgroup.Group

	for i, f := range domain.MetaobjectFields {
		g.Go(func() error {
			out, err := s.resolver.Resolve(ctx, s.resolveRequest(session, f, session.Draft.Metaobject(f).Label), domain.ResolveLenient)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", f, err)
			}
			outcomes[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures domain.ResolutionErrors
	for i, f := range domain.MetaobjectFields {
		if outcomes[i].Kind != domain.OutcomeOK {
			failures = append(failures, &domain.FieldResolutionError{
				Field:      f,
				Label:      session.Draft.Metaobject(f).Label,
				Kind:       outcomes[i].Kind,
				Candidates: outcomes[i].Candidates,
			})
		}
	}
	if len(failures) > 0 {
		return nil, failures
	}
	return outcomes, nil
}

func (s *DealService) resolveRequest(session *domain.DealSession, f domain.MetaobjectField, label string) domain.ResolveRequest {
	return domain.ResolveRequest{
		Shop:          s.shop,
		TypeHandle:    s.types[f],
		Label:         label,
		CorrelationID: session.DealID,
	}
}

// resolveFailed writes the error log row and failure event, then returns err.
func (s *DealService) resolveFailed(ctx context.Context, dealID string, err error) error {
	details := resolutionFailureDetails(err)
	log.Printf("[DEAL] metaobject resolution failed for %s: %v", dealID, err)
	s.recordError(ctx, dealID, "", serviceResolve, "resolve_metaobjects_failed", err, details)
	s.appendEvent(ctx, dealID, domain.EventMetaobjectResolveFail, map[string]interface{}{
		"deal_id": dealID,
		"error":   err.Error(),
		"details": details,
	})
	return err
}

func resolutionFailureDetails(err error) interface{} {
	describe := func(fe *domain.FieldResolutionError) map[string]interface{} {
		d := map[string]interface{}{"field": fe.Field, "label": fe.Label, "kind": fe.Kind}
		if len(fe.Candidates) > 0 {
			d["candidates"] = fe.Candidates
		}
		return d
	}

	var many domain.ResolutionErrors
	if errors.As(err, &many) {
		fields := make([]map[string]interface{}, len(many))
		for i, fe := range many {
			fields[i] = describe(fe)
		}
		return map[string]interface{}{"fields": fields}
	}
	var fe *domain.FieldResolutionError
	if errors.As(err, &fe) {
		return describe(fe)
	}
	return nil
}

// ExpireDue moves every session still awaiting operator input whose expiry
// has passed to expired and returns how many were moved. A session that left
// draft or awaiting_confirmation after it was listed is skipped.
func (s *DealService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	due, err := s.sessions.ListExpiring(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, session := range due {
		state := domain.StateExpired
		_, err := s.sessions.Update(ctx, session.DealID, domain.DealPatch{
			State:      &state,
			FromStates: expirableStates,
		}, domain.UpdateOptions{})
		if errors.Is(err, domain.ErrStatePrecondition) {
			if s.enableDebugLogging {
				log.Printf("[DEAL] skipped expiry of %s: %v", session.DealID, err)
			}
			continue
		}
		if err != nil {
			log.Printf("[DEAL] failed to expire %s: %v", session.DealID, err)
			continue
		}
		s.appendEvent(ctx, session.DealID, domain.EventDealExpired, map[string]interface{}{
			"deal_id":        session.DealID,
			"previous_state": session.State,
			"expires_at":     session.ExpiresAt,
		})
		expired++
	}

	if expired > 0 {
		log.Printf("[DEAL] expired %d deals", expired)
	}
	return expired, nil
}

// MarkPublished records that a confirmed deal has been published.
func (s *DealService) MarkPublished(ctx context.Context, dealID string) (*domain.DealSession, error) {
	session, err := s.sessions.Get(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if session.State != domain.StateConfirmed {
		err := &domain.StateError{DealID: dealID, State: session.State, Want: confirmedStates}
		s.recordError(ctx, dealID, "", serviceDeals, "publish_rejected", err, nil)
		return nil, err
	}

	published := domain.StatePublished
	updated, err := s.sessions.Update(ctx, dealID, domain.DealPatch{
		State:      &published,
		FromStates: confirmedStates,
	}, domain.UpdateOptions{})
	if err != nil {
		s.recordError(ctx, dealID, "", serviceDeals, "update_failed", err, nil)
		return nil, err
	}
	s.appendEvent(ctx, dealID, domain.EventDealPublished, map[string]interface{}{"deal_id": dealID, "draft_version": updated.DraftVersion})
	return updated, nil
}

func (s *DealService) newSession(dealID string, draft domain.Draft, messageIDs []string) *domain.DealSession {
	now := s.now().UTC()
	if messageIDs == nil {
		messageIDs = []string{}
	}
	return &domain.DealSession{
		DealID:           dealID,
		CorrelationID:    dealID,
		State:            domain.StateDraft,
		SourceMessageIDs: messageIDs,
		Draft:            draft,
		DraftVersion:     1,
		ExpiresAt:        now.Add(s.ttl),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// notify sends the rendered CHECK after a committed change.
func (s *DealService) notify(ctx context.Context, recipient string, check *domain.CheckMessage) {
	if s.messenger == nil || recipient == "" || check == nil {
		return
	}
	if err := s.messenger.SendText(ctx, recipient, RenderCheckText(check)); err != nil {
		log.Printf("[DEAL] failed to send CHECK for %s: %v", check.DealID, err)
		s.recordError(ctx, check.DealID, "", serviceNotify, "check_send_failed", err, map[string]interface{}{"recipient": recipient})
		s.appendEvent(ctx, check.DealID, domain.EventCheckSendFailed, map[string]interface{}{
			"deal_id":       check.DealID,
			"draft_version": check.DraftVersion,
			"error":         err.Error(),
		})
	}
}

// appendEvent is best-effort; failures are only logged.
func (s *DealService) appendEvent(ctx context.Context, correlationID, eventType string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("[DEAL] failed to encode %s event: %v", eventType, err)
		return
	}
	event := &domain.EventEnvelope{
		EventID:       s.newID(),
		Source:        domain.EventSourceInternal,
		Type:          eventType,
		OccurredAt:    s.now().UTC(),
		CorrelationID: correlationID,
		Shop:          s.shop,
		Data:          raw,
	}
	if err := s.events.Append(ctx, event); err != nil {
		log.Printf("[DEAL] failed to append %s event for %s: %v", eventType, correlationID, err)
	}
}

// recordError is best-effort; failures are only logged.
func (s *DealService) recordError(ctx context.Context, correlationID, eventID, service, code string, cause error, details interface{}) {
	if s.errorLog == nil {
		return
	}
	var raw json.RawMessage
	if details != nil {
		raw, _ = json.Marshal(details)
	}
	record := &domain.ErrorRecord{
		CorrelationID: correlationID,
		EventID:       eventID,
		Service:       service,
		ErrorCode:     code,
		Message:       cause.Error(),
		Details:       raw,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.errorLog.Append(ctx, record); err != nil {
		log.Printf("[DEAL] failed to record %s error for %s: %v", code, correlationID, err)
	}
}
