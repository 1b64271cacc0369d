package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hotbags/backend/internal/domain"
)

// Colour display names carry two descriptor tokens before the colour itself,
// e.g. "Gold Hardware Black".
var colourPrefixPattern = regexp.MustCompile(`^\S+\s+\S+\s+`)

const tracerName = "github.com/hotbags/backend/internal/usecase"

// ResolverConfig holds configuration for the metaobject resolver
type ResolverConfig struct {
	// ColourType is the type handle searched with the broad colour query
	ColourType string
	// ColourSearchLimit bounds the non-exact colour search window
	ColourSearchLimit int
	// ExactSearchLimit bounds the exact display name search window
	ExactSearchLimit int

	EnableDebugLogging bool
}

// MetaobjectResolver maps free-text labels to catalog metaobject ids.
// Flow: normalize -> check cache -> search catalog -> filter -> pick -> cache
type MetaobjectResolver struct {
	catalog domain.CatalogSearch
	cache   domain.MetaobjectCache
	events  domain.EventLog
	tracer  trace.Tracer

	colourType         string
	colourSearchLimit  int
	exactSearchLimit   int
	enableDebugLogging bool

	now   func() time.Time
	newID func() string
}

// NewMetaobjectResolver creates a new resolver with dependencies
func NewMetaobjectResolver(
	catalog domain.CatalogSearch,
	cache domain.MetaobjectCache,
	events domain.EventLog,
	config ResolverConfig,
) *MetaobjectResolver {
	colourType := config.ColourType
	if colourType == "" {
		colourType = string(domain.FieldColour)
	}
	colourLimit := config.ColourSearchLimit
	if colourLimit <= 0 {
		colourLimit = 25
	}
	exactLimit := config.ExactSearchLimit
	if exactLimit <= 0 {
		exactLimit = 10
	}

	return &MetaobjectResolver{
		catalog:            catalog,
		cache:              cache,
		events:             events,
		tracer:             otel.Tracer(tracerName),
		colourType:         colourType,
		colourSearchLimit:  colourLimit,
		exactSearchLimit:   exactLimit,
		enableDebugLogging: config.EnableDebugLogging,
		now:                time.Now,
		newID:              uuid.NewString,
	}
}

// Resolve maps req.Label to a catalog id. Not-found and ambiguous results
// come back as an Outcome; the error is reserved for missing configuration
// and infrastructure failures.
func (r *MetaobjectResolver) Resolve(ctx context.Context, req domain.ResolveRequest, mode domain.ResolveMode) (domain.Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "metaobject.resolve", trace.WithAttributes(
		attribute.String("metaobject.type", req.TypeHandle),
		attribute.String("metaobject.mode", string(mode)),
	))
	defer span.End()

	outcome, err := r.resolve(ctx, req, mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}
	span.SetAttributes(
		attribute.String("metaobject.outcome", string(outcome.Kind)),
		attribute.Bool("metaobject.cache_hit", outcome.FromCache),
	)
	return outcome, nil
}

func (r *MetaobjectResolver) resolve(ctx context.Context, req domain.ResolveRequest, mode domain.ResolveMode) (domain.Outcome, error) {
	if req.Shop == "" {
		return domain.Outcome{}, fmt.Errorf("%w: shop", domain.ErrUnconfigured)
	}
	if req.TypeHandle == "" {
		return domain.Outcome{}, fmt.Errorf("%w: type handle is required", domain.ErrInvalidRequest)
	}
	normalized := NormalizeLabel(req.Label)
	if normalized == "" {
		return domain.Outcome{}, fmt.Errorf("%w: label is required", domain.ErrInvalidRequest)
	}

	if cached := r.lookupCache(ctx, req.Shop, req.TypeHandle, normalized); cached != nil {
		if r.enableDebugLogging {
			log.Printf("[RESOLVE] cache hit %s %q -> %s", req.TypeHandle, req.Label, cached.GID)
		}
		r.storeCache(ctx, req.Shop, req.TypeHandle, normalized, cached.InputLabel, domain.Candidate{ID: cached.GID, DisplayName: cached.DisplayName})
		return domain.Outcome{
			Kind:      domain.OutcomeOK,
			Value:     domain.Resolution{ID: cached.GID, Label: cached.InputLabel, DisplayName: cached.DisplayName},
			FromCache: true,
		}, nil
	}

	isColour := req.TypeHandle == r.colourType
	limit := r.exactSearchLimit
	if isColour {
		limit = r.colourSearchLimit
	}

	candidates, err := r.catalog.Search(ctx, req.TypeHandle, SearchQuery(req.Label, !isColour), limit)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("%w: %v", domain.ErrCatalogFailure, err)
	}

	matches := FilterCandidates(candidates, normalized, isColour)
	if r.enableDebugLogging {
		log.Printf("[RESOLVE] %s %q: %d candidates, %d matches", req.TypeHandle, req.Label, len(candidates), len(matches))
	}

	switch {
	case len(matches) == 0:
		return domain.Outcome{Kind: domain.OutcomeNotFound}, nil
	case len(matches) > 1 && mode != domain.ResolveLenient:
		return domain.Outcome{Kind: domain.OutcomeAmbiguous, Candidates: displayNames(matches)}, nil
	}

	chosen := matches[0]
	var names []string
	if len(matches) > 1 {
		chosen = shortestDisplayName(matches)
		names = displayNames(matches)
		r.warnAutoPick(ctx, req, normalized, names, chosen)
	}

	r.storeCache(ctx, req.Shop, req.TypeHandle, normalized, req.Label, chosen)

	return domain.Outcome{
		Kind:       domain.OutcomeOK,
		Value:      domain.Resolution{ID: chosen.ID, Label: req.Label, DisplayName: chosen.DisplayName},
		Candidates: names,
	}, nil
}

// lookupCache treats every cache failure as a miss.
func (r *MetaobjectResolver) lookupCache(ctx context.Context, shop, typeHandle, normalized string) *domain.MetaobjectCacheEntry {
	entry, err := r.cache.Get(ctx, shop, typeHandle, normalized)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			log.Printf("[RESOLVE] cache get failed for %s %q: %v", typeHandle, normalized, err)
		}
		return nil
	}
	return entry
}

// storeCache logs but does not fail if caching fails.
func (r *MetaobjectResolver) storeCache(ctx context.Context, shop, typeHandle, normalized, inputLabel string, chosen domain.Candidate) {
	err := r.cache.Upsert(ctx, &domain.MetaobjectCacheEntry{
		Shop:            shop,
		TypeHandle:      typeHandle,
		NormalizedLabel: normalized,
		GID:             chosen.ID,
		InputLabel:      inputLabel,
		DisplayName:     chosen.DisplayName,
		UpdatedAt:       r.now().UTC(),
	})
	if err != nil {
		log.Printf("[RESOLVE] cache upsert failed for %s %q: %v", typeHandle, normalized, err)
	}
}

func (r *MetaobjectResolver) warnAutoPick(ctx context.Context, req domain.ResolveRequest, normalized string, names []string, chosen domain.Candidate) {
	log.Printf("[RESOLVE] WARNING: %d matches for %s %q, picked %q", len(names), req.TypeHandle, req.Label, chosen.DisplayName)

	if r.events == nil {
		return
	}
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = req.Shop
	}
	data, _ := json.Marshal(map[string]interface{}{
		"type_handle":             req.TypeHandle,
		"label":                   req.Label,
		"normalized_label":        normalized,
		"candidate_display_names": names,
		"chosen_display_name":     chosen.DisplayName,
	})
	err := r.events.Append(ctx, &domain.EventEnvelope{
		EventID:       r.newID(),
		Source:        domain.EventSourceInternal,
		Type:          domain.EventMetaobjectResolveWarn,
		OccurredAt:    r.now().UTC(),
		CorrelationID: correlationID,
		Shop:          req.Shop,
		Data:          data,
	})
	if err != nil {
		log.Printf("[RESOLVE] failed to append warning event: %v", err)
	}
}

// NormalizeLabel trims and lowercases a label.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// NormalizeColourDisplayName drops the first two whitespace-separated tokens
// of a colour display name and normalizes the rest.
func NormalizeColourDisplayName(displayName string) string {
	return NormalizeLabel(colourPrefixPattern.ReplaceAllString(displayName, ""))
}

// SearchQuery builds the catalog display name filter. Exact queries quote
// the label; single quotes are escaped in both forms.
func SearchQuery(label string, exact bool) string {
	escaped := strings.ReplaceAll(label, "'", `\'`)
	if exact {
		return "display_name:'" + escaped + "'"
	}
	return "display_name:" + escaped
}

// FilterCandidates keeps the candidates whose normalized display name equals
// the normalized label, preserving catalog order.
func FilterCandidates(candidates []domain.Candidate, normalizedLabel string, colour bool) []domain.Candidate {
	var matches []domain.Candidate
	for _, c := range candidates {
		name := NormalizeLabel(c.DisplayName)
		if colour {
			name = NormalizeColourDisplayName(c.DisplayName)
		}
		if name == normalizedLabel {
			matches = append(matches, c)
		}
	}
	return matches
}

// shortestDisplayName returns the first candidate with the fewest characters.
func shortestDisplayName(candidates []domain.Candidate) domain.Candidate {
	chosen := candidates[0]
	for _, c := range candidates[1:] {
		if utf8.RuneCountInString(c.DisplayName) < utf8.RuneCountInString(chosen.DisplayName) {
			chosen = c
		}
	}
	return chosen
}

func displayNames(candidates []domain.Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.DisplayName
	}
	return names
}
