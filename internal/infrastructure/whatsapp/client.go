package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hotbags/backend/internal/domain"
)

const (
	defaultBaseURL    = "https://graph.facebook.com"
	defaultAPIVersion = "v21.0"
	maxAttempts       = 3
)

// Config identifies the WhatsApp Cloud API sender.
type Config struct {
	PhoneNumberID     string
	AccessToken       string
	APIVersion        string
	BaseURL           string
	RequestsPerSecond float64
}

// Client sends text messages through the WhatsApp Cloud API
type Client struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string
	rateLimiter *rate.Limiter
	backoff     func(attempt int) time.Duration
}

// NewClient creates a Cloud API client for one business phone number
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = defaultAPIVersion
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		endpoint:    fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(base, "/"), version, cfg.PhoneNumberID),
		accessToken: cfg.AccessToken,
		rateLimiter: rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*500) * time.Millisecond
		},
	}
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type messageRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             textBody `json:"text"`
}

// SendText delivers body to the recipient's WhatsApp number.
func (c *Client) SendText(ctx context.Context, recipient, body string) error {
	payload, err := json.Marshal(messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               strings.TrimPrefix(recipient, "+"),
		Type:             "text",
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter error: %w", err)
		}

		status, respBody, err := c.post(ctx, payload)
		switch {
		case err != nil:
			lastErr = err
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrMessagingFailure, status)
		default:
			log.Printf("[WHATSAPP] Send rejected - Status: %d, Body: %s", status, string(respBody))
			return fmt.Errorf("%w: status %d: %s", domain.ErrMessagingFailure, status, string(respBody))
		}

		log.Printf("[WHATSAPP] Send failed (attempt %d): %v", attempt, lastErr)
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", domain.ErrMessagingFailure, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, nil
}
