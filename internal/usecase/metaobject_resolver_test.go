package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotbags/backend/internal/domain"
)

const testShop = "hotbags-test.myshopify.com"

func newTestResolver(catalog *MockCatalogSearch, cache *MockMetaobjectCache, events *MockEventLog) *MetaobjectResolver {
	r := NewMetaobjectResolver(catalog, cache, events, ResolverConfig{ColourType: "hermes_colour"})
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ids := 0
	r.newID = func() string {
		ids++
		return fmt.Sprintf("evt-%d", ids)
	}
	return r
}

func TestResolve_ExactMatch(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["herm_s_material"] = []domain.Candidate{
		{ID: "gid://shopify/Metaobject/10", DisplayName: "Togo"},
		{ID: "gid://shopify/Metaobject/11", DisplayName: "Togo Swift"},
	}
	cache := NewMockMetaobjectCache()
	r := newTestResolver(catalog, cache, NewMockEventLog())

	out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "herm_s_material", Label: " Togo "}, domain.ResolveStrict)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOK, out.Kind)
	assert.Equal(t, domain.Resolution{ID: "gid://shopify/Metaobject/10", Label: " Togo ", DisplayName: "Togo"}, out.Value)
	assert.False(t, out.FromCache)

	require.Len(t, catalog.calls, 1)
	assert.Equal(t, searchCall{typeHandle: "herm_s_material", query: "display_name:' Togo '", limit: 10}, catalog.calls[0])

	entry, err := cache.Get(context.Background(), testShop, "herm_s_material", "togo")
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Metaobject/10", entry.GID)
	assert.Equal(t, " Togo ", entry.InputLabel)
	assert.Equal(t, "Togo", entry.DisplayName)
}

func TestResolve_ColourStripsDescriptorTokens(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_colour"] = []domain.Candidate{
		{ID: "gid://shopify/Metaobject/1", DisplayName: "Gold Hardware Black"},
		{ID: "gid://shopify/Metaobject/2", DisplayName: "Black"},
		{ID: "gid://shopify/Metaobject/3", DisplayName: "Gold Hardware Blue Jean"},
	}
	r := newTestResolver(catalog, NewMockMetaobjectCache(), NewMockEventLog())

	out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "Black"}, domain.ResolveStrict)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOK, out.Kind)
	assert.Equal(t, "gid://shopify/Metaobject/1", out.Value.ID)
	assert.Equal(t, searchCall{typeHandle: "hermes_colour", query: "display_name:Black", limit: 25}, catalog.calls[0])
}

func TestResolve_NotFound(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_hardware"] = []domain.Candidate{{ID: "gid://shopify/Metaobject/5", DisplayName: "Palladium"}}
	cache := NewMockMetaobjectCache()
	r := newTestResolver(catalog, cache, NewMockEventLog())

	out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_hardware", Label: "Gold"}, domain.ResolveLenient)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeNotFound, out.Kind)
	assert.Empty(t, out.Candidates)
	assert.Equal(t, 0, cache.upserts)
}

func TestResolve_StrictReportsAmbiguity(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_colour"] = []domain.Candidate{
		{ID: "gid://shopify/Metaobject/1", DisplayName: "Gold Hardware Black"},
		{ID: "gid://shopify/Metaobject/2", DisplayName: "Palladium Hardware Black"},
	}
	cache := NewMockMetaobjectCache()
	events := NewMockEventLog()
	r := newTestResolver(catalog, cache, events)

	out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "Black"}, domain.ResolveStrict)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeAmbiguous, out.Kind)
	assert.Equal(t, []string{"Gold Hardware Black", "Palladium Hardware Black"}, out.Candidates)
	assert.Empty(t, out.Value.ID)
	assert.Equal(t, 0, cache.upserts)
	assert.Empty(t, events.events)
}

func TestResolve_LenientPicksShortestAndWarns(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_colour"] = []domain.Candidate{
		{ID: "gid://shopify/Metaobject/1", DisplayName: "Palladium Hardware Black"},
		{ID: "gid://shopify/Metaobject/2", DisplayName: "Gold Hardware Black"},
		{ID: "gid://shopify/Metaobject/3", DisplayName: "Rose Hardware Black"},
	}
	cache := NewMockMetaobjectCache()
	events := NewMockEventLog()
	r := newTestResolver(catalog, cache, events)

	req := domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "Black", CorrelationID: "deal-1"}
	out, err := r.Resolve(context.Background(), req, domain.ResolveLenient)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeOK, out.Kind)
	// "Gold" and "Rose" tie on length; the first in catalog order wins
	assert.Equal(t, "gid://shopify/Metaobject/2", out.Value.ID)
	assert.Len(t, out.Candidates, 3)
	assert.Equal(t, 1, cache.upserts)

	warnings := events.ofType(domain.EventMetaobjectResolveWarn)
	require.Len(t, warnings, 1)
	assert.Equal(t, "deal-1", warnings[0].CorrelationID)
	data := eventData(warnings[0])
	assert.Equal(t, "Gold Hardware Black", data["chosen_display_name"])
	assert.Len(t, data["candidate_display_names"], 3)
}

func TestResolve_CacheShortCircuitsSearch(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_hardware"] = []domain.Candidate{{ID: "gid://shopify/Metaobject/7", DisplayName: "Gold"}}
	cache := NewMockMetaobjectCache()
	r := newTestResolver(catalog, cache, NewMockEventLog())
	req := domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_hardware", Label: "Gold"}

	first, err := r.Resolve(context.Background(), req, domain.ResolveStrict)
	require.NoError(t, err)
	require.Equal(t, 1, catalog.callCount())

	req.Label = "  GOLD"
	second, err := r.Resolve(context.Background(), req, domain.ResolveStrict)
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.callCount())
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Value.ID, second.Value.ID)
	// cached input label is returned, not the new spelling
	assert.Equal(t, "Gold", second.Value.Label)
}

func TestResolve_CacheFailureFallsBackToSearch(t *testing.T) {
	catalog := NewMockCatalogSearch()
	catalog.results["hermes_construction"] = []domain.Candidate{{ID: "gid://shopify/Metaobject/9", DisplayName: "Sellier"}}
	cache := NewMockMetaobjectCache()
	cache.getError = errors.New("redis: connection refused")
	cache.upsertError = errors.New("redis: connection refused")
	r := newTestResolver(catalog, cache, NewMockEventLog())

	out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_construction", Label: "Sellier"}, domain.ResolveStrict)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeOK, out.Kind)
	assert.Equal(t, 1, catalog.callCount())
}

func TestResolve_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		req     domain.ResolveRequest
		search  error
		wantErr error
	}{
		{"missing shop", domain.ResolveRequest{TypeHandle: "hermes_colour", Label: "Black"}, nil, domain.ErrUnconfigured},
		{"blank label", domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "  "}, nil, domain.ErrInvalidRequest},
		{"missing type", domain.ResolveRequest{Shop: testShop, Label: "Black"}, nil, domain.ErrInvalidRequest},
		{"catalog failure", domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "Black"}, errors.New("502 bad gateway"), domain.ErrCatalogFailure},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			catalog := NewMockCatalogSearch()
			catalog.searchError = tc.search
			r := newTestResolver(catalog, NewMockMetaobjectCache(), NewMockEventLog())

			_, err := r.Resolve(context.Background(), tc.req, domain.ResolveStrict)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestSearchQuery(t *testing.T) {
	assert.Equal(t, `display_name:'Rouge H'`, SearchQuery("Rouge H", true))
	assert.Equal(t, `display_name:'Bleu d\'Encre'`, SearchQuery("Bleu d'Encre", true))
	assert.Equal(t, `display_name:Bleu d\'Encre`, SearchQuery("Bleu d'Encre", false))
}

func TestNormalizeColourDisplayName(t *testing.T) {
	assert.Equal(t, NormalizeLabel("Black"), NormalizeColourDisplayName("Gold Hardware Black"))
	assert.Equal(t, "blue jean", NormalizeColourDisplayName("Palladium Hardware  Blue Jean "))
	assert.Equal(t, "gold hardware", NormalizeColourDisplayName("Gold Hardware"))
}

func TestColourNormalizationProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("first two tokens are ignored", prop.ForAll(
		func(a, b, colour string) bool {
			return NormalizeColourDisplayName(a+" "+b+" "+colour) == NormalizeLabel(colour)
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestStrictNeverAutoPicksProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("strict returns every match when more than one matches", prop.ForAll(
		func(prefixes []string) bool {
			catalog := NewMockCatalogSearch()
			for i, p := range prefixes {
				catalog.results["hermes_colour"] = append(catalog.results["hermes_colour"], domain.Candidate{
					ID:          fmt.Sprintf("gid://shopify/Metaobject/%d", i),
					DisplayName: p + " Hardware Etoupe",
				})
			}
			r := newTestResolver(catalog, NewMockMetaobjectCache(), NewMockEventLog())

			out, err := r.Resolve(context.Background(), domain.ResolveRequest{Shop: testShop, TypeHandle: "hermes_colour", Label: "etoupe"}, domain.ResolveStrict)
			if err != nil || out.Kind != domain.OutcomeAmbiguous || out.Value.ID != "" {
				return false
			}
			return assert.ObjectsAreEqual(displayNames(catalog.results["hermes_colour"]), out.Candidates)
		},
		gen.SliceOfN(3, gen.Identifier()),
	))

	properties.TestingRun(t)
}
