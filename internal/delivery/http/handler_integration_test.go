package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hotbags/backend/config"
	"github.com/hotbags/backend/internal/domain"
	"github.com/hotbags/backend/internal/infrastructure/cache"
	"github.com/hotbags/backend/internal/infrastructure/store"
	"github.com/hotbags/backend/internal/usecase"
)

const (
	testShop         = "hotbags-test.myshopify.com"
	testBearerToken  = "gateway-secret"
	scenarioMessage  = "Seller: Birkin 25 Gold Togo GHW, stamp U, £12,500, no receipt"
	scenarioOperator = "447700900123"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// stubCatalog answers catalog searches from a fixed table keyed by type handle
type stubCatalog map[string][]domain.Candidate

func (s stubCatalog) Search(ctx context.Context, typeHandle, query string, limit int) ([]domain.Candidate, error) {
	return s[typeHandle], nil
}

func defaultCatalog() stubCatalog {
	return stubCatalog{
		"hermes_colour": {
			{ID: "gid://shopify/Metaobject/101", DisplayName: "Gold Hardware Gold"},
			{ID: "gid://shopify/Metaobject/102", DisplayName: "Gold Hardware Black"},
			{ID: "gid://shopify/Metaobject/103", DisplayName: "Palladium Hardware Black"},
		},
		"herm_s_material":     {{ID: "gid://shopify/Metaobject/201", DisplayName: "Togo"}},
		"hermes_hardware":     {{ID: "gid://shopify/Metaobject/301", DisplayName: "Gold"}},
		"hermes_construction": {{ID: "gid://shopify/Metaobject/401", DisplayName: "Sellier"}},
	}
}

type testServer struct {
	router   *gin.Engine
	sessions *store.MemorySessionStore
	events   *store.MemoryEventLog
	errors   *store.MemoryErrorLog
}

// setupTestRouter wires the real deal service over in-memory stores
func setupTestRouter(t *testing.T, shop string) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Inbound: config.InboundConfig{BearerToken: testBearerToken},
	}

	sessions := store.NewMemorySessionStore()
	events := store.NewMemoryEventLog()
	errorLog := store.NewMemoryErrorLog()
	resolver := usecase.NewMetaobjectResolver(defaultCatalog(), cache.NewMemoryCache(), events, usecase.ResolverConfig{})
	deals := usecase.NewDealService(sessions, events, errorLog, resolver, nil, usecase.DealServiceConfig{Shop: shop})

	return &testServer{
		router:   SetupRouter(cfg, NewHandler(deals)),
		sessions: sessions,
		events:   events,
		errors:   errorLog,
	}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if strings.HasSuffix(path, "/inbound") {
		req.Header.Set("Authorization", "Bearer "+testBearerToken)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w.Code, response
}

func (s *testServer) createDeal(t *testing.T, dealID string) {
	t.Helper()
	code, _ := s.do(t, "POST", "/api/v1/deals", gin.H{"deal_id": dealID, "source_text": scenarioMessage})
	require.Equal(t, http.StatusCreated, code)
}

func dealField(t *testing.T, response map[string]any, key string) any {
	t.Helper()
	deal, ok := response["deal"].(map[string]any)
	require.True(t, ok, "response has no deal: %v", response)
	return deal[key]
}

func TestHealthCheckEndpoint(t *testing.T) {
	server := setupTestRouter(t, testShop)
	code, response := server.do(t, "GET", "/health", nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "hotbags-backend", response["service"])
}

func TestInboundEndpoint(t *testing.T) {
	t.Run("creates deal and returns send_text command", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		code, response := server.do(t, "POST", "/api/v1/inbound", gin.H{
			"event_id":   "evt-1",
			"text":       scenarioMessage,
			"from":       scenarioOperator,
			"message_id": "wamid.1",
		})

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, response["ok"])
		assert.Equal(t, true, response["created"])
		assert.Equal(t, "wa_447700900123_wamid.1", response["deal_id"])

		commands := response["commands"].([]any)
		require.Len(t, commands, 1)
		command := commands[0].(map[string]any)
		assert.Equal(t, "send_text", command["type"])
		assert.NotEmpty(t, command["command_id"])
		assert.Contains(t, command["text"], "CHECK")
		assert.Contains(t, command["text"], "Birkin")

		session, err := server.sessions.Get(context.Background(), "wa_447700900123_wamid.1")
		require.NoError(t, err)
		assert.Equal(t, domain.StateDraft, session.State)
		assert.Equal(t, 25, session.Draft.BagSizeCM.Value)
	})

	t.Run("redelivery produces no command", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		payload := gin.H{"deal_id": "deal-1", "text": scenarioMessage, "from": scenarioOperator, "message_id": "wamid.1"}
		server.do(t, "POST", "/api/v1/inbound", payload)

		code, response := server.do(t, "POST", "/api/v1/inbound", payload)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, response["duplicate"])
		assert.Empty(t, response["commands"])
	})

	t.Run("media-only message gets placeholder text and no command", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		code, response := server.do(t, "POST", "/api/v1/inbound", gin.H{
			"deal_id": "deal-img", "message_type": "image", "media_count": 2, "from": scenarioOperator, "message_id": "wamid.img",
		})
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, response["commands"])

		session, err := server.sessions.Get(context.Background(), "deal-img")
		require.NoError(t, err)
		assert.Equal(t, "[image:2]", session.Draft.Provenance.SourceText)
	})

	t.Run("rejects missing bearer token", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		req := httptest.NewRequest("POST", "/api/v1/inbound", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		server.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects payload without sender", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		code, _ := server.do(t, "POST", "/api/v1/inbound", gin.H{"text": "Birkin 25", "message_id": "wamid.1"})
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestDealLifecycle(t *testing.T) {
	server := setupTestRouter(t, testShop)
	server.createDeal(t, "deal-1")

	code, response := server.do(t, "GET", "/api/v1/deals/deal-1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "awaiting_confirmation", dealField(t, response, "state"))
	assert.Contains(t, response["text"], "Reply YES")

	code, response = server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "bag_size_cm=30\nprice=11,000"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UPDATED", response["status"])
	assert.Equal(t, float64(2), dealField(t, response, "draft_version"))
	assert.NotNil(t, response["check"])
	assert.NotEmpty(t, response["diff"])

	code, response = server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "YES"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "CONFIRMED", response["status"])
	assert.Equal(t, "confirmed", dealField(t, response, "state"))
	assert.Nil(t, response["check"])

	code, response = server.do(t, "POST", "/api/v1/deals/deal-1/resolve", nil)
	require.Equal(t, http.StatusOK, code, response)
	assert.Equal(t, float64(3), dealField(t, response, "draft_version"))
	resolved := response["resolved"].(map[string]any)
	colour := resolved["hermes_colour"].(map[string]any)
	assert.Equal(t, "gid://shopify/Metaobject/101", colour["id"])

	code, response = server.do(t, "POST", "/api/v1/deals/deal-1/published", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "published", dealField(t, response, "state"))

	code, _ = server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "YES"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestReplyErrors(t *testing.T) {
	tests := []struct {
		name       string
		dealID     string
		text       string
		wantStatus int
		wantKey    string
	}{
		{name: "unknown deal", dealID: "missing", text: "YES", wantStatus: http.StatusNotFound},
		{name: "unsupported edit key", dealID: "deal-1", text: "unknown_key=x", wantStatus: http.StatusBadRequest, wantKey: "unknown_key"},
		{name: "bad size value", dealID: "deal-1", text: "bag_size_cm=huge", wantStatus: http.StatusBadRequest, wantKey: "bag_size_cm"},
		{name: "malformed edit line", dealID: "deal-1", text: "EDIT\nbag_size_cm 30", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestRouter(t, testShop)
			server.createDeal(t, "deal-1")

			code, response := server.do(t, "POST", "/api/v1/deals/"+tt.dealID+"/reply", gin.H{"text": tt.text})
			assert.Equal(t, tt.wantStatus, code)
			assert.NotEmpty(t, response["error"])
			if tt.wantKey != "" {
				assert.Equal(t, tt.wantKey, response["key"])
			}
			assert.NotEmpty(t, server.errors.Records())
		})
	}
}

func TestReplyUnknownReturnsCurrentCheck(t *testing.T) {
	server := setupTestRouter(t, testShop)
	server.createDeal(t, "deal-1")

	code, response := server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "hello world"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "UNKNOWN", response["status"])
	assert.NotNil(t, response["check"])
	assert.Equal(t, float64(1), dealField(t, response, "draft_version"))
}

func TestResolveEndpoint(t *testing.T) {
	confirmWithColour := func(t *testing.T, server *testServer, colour string) {
		server.createDeal(t, "deal-1")
		code, _ := server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "hermes_colour.label=" + colour})
		require.Equal(t, http.StatusOK, code)
		code, _ = server.do(t, "POST", "/api/v1/deals/deal-1/reply", gin.H{"text": "YES"})
		require.Equal(t, http.StatusOK, code)
	}

	t.Run("strict ambiguity is a conflict with candidates", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		confirmWithColour(t, server, "Black")

		code, response := server.do(t, "POST", "/api/v1/deals/deal-1/resolve?mode=strict", nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "hermes_colour", response["field"])
		assert.ElementsMatch(t, []any{"Gold Hardware Black", "Palladium Hardware Black"}, response["candidates"])
	})

	t.Run("lenient picks shortest display name", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		confirmWithColour(t, server, "Black")

		code, response := server.do(t, "POST", "/api/v1/deals/deal-1/resolve?mode=lenient", nil)
		require.Equal(t, http.StatusOK, code, response)
		colour := response["resolved"].(map[string]any)["hermes_colour"].(map[string]any)
		assert.Equal(t, "gid://shopify/Metaobject/102", colour["id"])
	})

	t.Run("unknown label is a client error naming the field", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		confirmWithColour(t, server, "Vert Criquet")

		code, response := server.do(t, "POST", "/api/v1/deals/deal-1/resolve", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "hermes_colour", response["field"])
		assert.Equal(t, "Vert Criquet", response["label"])
	})

	t.Run("unconfirmed deal is rejected", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		server.createDeal(t, "deal-1")

		code, response := server.do(t, "POST", "/api/v1/deals/deal-1/resolve", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "awaiting_confirmation", response["state"])
	})

	t.Run("missing shop is a server error", func(t *testing.T) {
		server := setupTestRouter(t, "")
		confirmWithColour(t, server, "Gold")

		code, _ := server.do(t, "POST", "/api/v1/deals/deal-1/resolve", nil)
		assert.Equal(t, http.StatusInternalServerError, code)
	})

	t.Run("invalid mode", func(t *testing.T) {
		server := setupTestRouter(t, testShop)
		code, _ := server.do(t, "POST", "/api/v1/deals/deal-1/resolve?mode=fuzzy", nil)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestListDealsEndpoint(t *testing.T) {
	server := setupTestRouter(t, testShop)
	server.createDeal(t, "deal-1")
	server.createDeal(t, "deal-2")

	code, response := server.do(t, "GET", "/api/v1/deals?limit=1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), response["count"])

	code, _ = server.do(t, "GET", "/api/v1/deals?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateDealConflict(t *testing.T) {
	server := setupTestRouter(t, testShop)
	server.createDeal(t, "deal-1")

	code, _ := server.do(t, "POST", "/api/v1/deals", gin.H{"deal_id": "deal-1", "source_text": "Kelly 28"})
	assert.Equal(t, http.StatusConflict, code)
}

func TestPreviewCheckEndpoint(t *testing.T) {
	server := setupTestRouter(t, testShop)

	code, response := server.do(t, "POST", "/api/v1/check", gin.H{"source_text": scenarioMessage})
	require.Equal(t, http.StatusOK, code)
	check := response["check"].(map[string]any)
	assert.Equal(t, "preview", check["deal_id"])
	assert.Contains(t, response["text"], "GBP 12,500")

	list, err := server.sessions.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestNilServiceReturnsNotImplemented(t *testing.T) {
	router := SetupRouter(&config.Config{}, NewHandler(nil))
	req := httptest.NewRequest("GET", "/api/v1/deals", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
