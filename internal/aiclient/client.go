// Package aiclient talks to the hosted generative model. One client serves
// the transcription, enhancement, analysis and suggestion services; all of
// them send a text instruction (optionally with inlined audio) and get a
// free-text reply back.
package aiclient

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Provider failure kinds. Callers distinguish these instead of matching on
// message text.
var (
	ErrNotConfigured  = errors.New("ai provider is not configured")
	ErrAuthFailed     = errors.New("ai provider rejected the api key")
	ErrQuotaExhausted = errors.New("ai provider quota exhausted")
	ErrMalformedAudio = errors.New("audio data was rejected as malformed")
	ErrUnavailable    = errors.New("ai provider unavailable")
)

// Config holds provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Generator is the surface the AI-backed services depend on.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateWithAudio(ctx context.Context, prompt, mimeType string, audio []byte) (string, error)
}

// Client implements Generator against a Gemini-style generateContent API.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	cfg     Config
	log     zerolog.Logger
}

// New constructs a provider client. Transcription payloads can be large and
// slow, so the underlying HTTP client carries a generous ceiling; callers
// cancel early through the request context.
func New(cfg Config, log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(5 * time.Minute)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ai-provider",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{http: httpClient, breaker: breaker, cfg: cfg, log: log}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Request/response shapes for the generateContent wire format.

type generatePart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateContent struct {
	Parts []generatePart `json:"parts"`
}

type generateRequest struct {
	Contents []generateContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateText sends a text-only instruction and returns the raw reply.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, []generatePart{{Text: prompt}})
}

// GenerateWithAudio sends an instruction with inlined audio data.
func (c *Client) GenerateWithAudio(ctx context.Context, prompt, mimeType string, audio []byte) (string, error) {
	parts := []generatePart{
		{Text: prompt},
		{InlineData: &inlineData{
			MimeType: mimeType,
			Data:     base64.StdEncoding.EncodeToString(audio),
		}},
	}
	return c.generate(ctx, parts)
}

func (c *Client) generate(ctx context.Context, parts []generatePart) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	body := generateRequest{Contents: []generateContent{{Parts: parts}}}
	endpoint := fmt.Sprintf("/models/%s:generateContent", c.cfg.Model)

	var reply string
	operation := func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.call(ctx, endpoint, &body)
		})
		if err != nil {
			// Only transient failures are worth retrying.
			if errors.Is(err, ErrUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		reply = out.(string)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return reply, nil
}

func (c *Client) call(ctx context.Context, endpoint string, body *generateRequest) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode() != http.StatusOK {
		return "", c.mapStatusError(resp)
	}

	var parsed generateResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("provider returned no candidates")
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// mapStatusError translates provider HTTP failures into the typed kinds the
// callers distinguish: auth, quota, malformed audio, or unavailable.
func (c *Client) mapStatusError(resp *resty.Response) error {
	bodyText := resp.String()
	c.log.Warn().
		Int("status", resp.StatusCode()).
		Str("body", truncate(bodyText, 300)).
		Msg("ai provider call failed")

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusTooManyRequests:
		return ErrQuotaExhausted
	case http.StatusBadRequest:
		lower := strings.ToLower(bodyText)
		if strings.Contains(lower, "audio") || strings.Contains(lower, "inline_data") ||
			strings.Contains(lower, "decode") {
			return ErrMalformedAudio
		}
		return fmt.Errorf("provider rejected the request (status 400)")
	default:
		if resp.StatusCode() >= 500 {
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
		}
		return fmt.Errorf("provider call failed with status %d", resp.StatusCode())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
