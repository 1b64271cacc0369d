package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/hotbags/backend/internal/domain"
)

const (
	defaultAPIVersion = "2025-01"
	maxAttempts       = 3
)

const metaobjectsQuery = `query Metaobjects($type: String!, $first: Int!, $query: String) {
  metaobjects(type: $type, first: $first, query: $query) {
    nodes { id displayName }
  }
}`

// Config holds the Admin API credentials and request budget.
type Config struct {
	Shop              string
	AccessToken       string
	APIVersion        string
	RequestsPerSecond float64
	Burst             int
	// BaseURL overrides https://{shop} (tests).
	BaseURL string
}

// Client searches catalog metaobjects through the Shopify Admin GraphQL API
type Client struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string
	rateLimiter *rate.Limiter
	tracer      trace.Tracer
	debug       bool
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new Admin API client
func NewClient(cfg Config) *Client {
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://" + cfg.Shop
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		endpoint:    fmt.Sprintf("%s/admin/api/%s/graphql.json", strings.TrimRight(base, "/"), version),
		accessToken: cfg.AccessToken,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		tracer:      otel.Tracer("github.com/hotbags/backend/internal/infrastructure/shopify"),
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables or disables verbose request logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

// exponentialBackoff returns 500ms, 1s, 2s for attempts 1, 2, 3
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*math.Pow(2, float64(attempt-1))) * time.Millisecond
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type metaobjectsResponse struct {
	Data struct {
		Metaobjects struct {
			Nodes []domain.Candidate `json:"nodes"`
		} `json:"metaobjects"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// retryable reports whether a status code is worth another attempt
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// Search returns up to limit metaobjects of typeHandle matching the search query.
func (c *Client) Search(ctx context.Context, typeHandle, query string, limit int) ([]domain.Candidate, error) {
	ctx, span := c.tracer.Start(ctx, "shopify.metaobjects.search", trace.WithAttributes(
		attribute.String("metaobject.type", typeHandle),
		attribute.Int("metaobject.limit", limit),
	))
	defer span.End()

	nodes, err := c.search(ctx, typeHandle, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("metaobject.results", len(nodes)))
	return nodes, nil
}

func (c *Client) search(ctx context.Context, typeHandle, query string, limit int) ([]domain.Candidate, error) {
	if c.accessToken == "" {
		return nil, fmt.Errorf("%w: shopify access token", domain.ErrUnconfigured)
	}
	if c.debug {
		log.Printf("[SHOPIFY] Search type=%s query=%q first=%d", typeHandle, query, limit)
	}

	payload, err := json.Marshal(graphQLRequest{
		Query: metaobjectsQuery,
		Variables: map[string]any{
			"type":  typeHandle,
			"first": limit,
			"query": query,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt - 1)):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			log.Printf("[SHOPIFY] Rate limiter error: %v", err)
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, payload)
		if err != nil {
			log.Printf("[SHOPIFY] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			continue
		}

		if status != http.StatusOK {
			log.Printf("[SHOPIFY] API error (attempt %d) - Status: %d, Body: %s", attempt, status, string(body))
			lastErr = fmt.Errorf("%w: status %d", domain.ErrCatalogFailure, status)
			if !retryable(status) {
				return nil, lastErr
			}
			continue
		}

		var resp metaobjectsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			log.Printf("[SHOPIFY] JSON decode error: %v", err)
			return nil, fmt.Errorf("%w: failed to decode response: %v", domain.ErrCatalogFailure, err)
		}
		if len(resp.Errors) > 0 {
			messages := make([]string, len(resp.Errors))
			for i, e := range resp.Errors {
				messages[i] = e.Message
			}
			return nil, fmt.Errorf("%w: graphql: %s", domain.ErrCatalogFailure, strings.Join(messages, "; "))
		}

		nodes := resp.Data.Metaobjects.Nodes
		if c.debug {
			log.Printf("[SHOPIFY] Found %d %s metaobjects for %q", len(nodes), typeHandle, query)
		}
		return nodes, nil
	}

	log.Printf("[SHOPIFY] All retries failed for type=%s query=%q", typeHandle, query)
	return nil, lastErr
}

// doRequest posts the GraphQL payload and returns the body and status code
func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("User-Agent", "HotBags/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domain.ErrCatalogFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: reading body: %v", domain.ErrCatalogFailure, err)
	}
	return body, resp.StatusCode, nil
}
