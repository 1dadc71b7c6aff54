// Package voice is the client side of voice complaint submission. It
// drives the record-upload-transcribe flow against the HTTP API and
// reports progress as an ordered list of steps so a frontend or the
// terminal recorder can render a live checklist.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"civicvoice/backend/internal/config"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Step names, in the order they occur.
const (
	StepPreparing    = "preparing"
	StepUploading    = "uploading"
	StepTranscribing = "transcribing"
	StepEnhancing    = "enhancing"
)

// Step is one entry of the progress checklist.
type Step struct {
	Step      string `json:"step"`
	Message   string `json:"message"`
	Completed bool   `json:"completed"`
}

// Options controls a transcription run.
type Options struct {
	Language      string // default "auto"
	PromptContext string
	Category      string
	MimeType      string // default audio/wav
	Enhance       bool
}

// Result is the terminal state of a transcription run.
type Result struct {
	Success       bool
	Cancelled     bool
	Error         error
	Transcription string
	EnhancedText  string
	Language      string
	Confidence    int
	Steps         []Step
}

// transcribeResponse mirrors the /api/ai/transcribe reply.
type transcribeResponse struct {
	Transcription    string `json:"transcription"`
	DetectedLanguage string `json:"detectedLanguage"`
	Confidence       int    `json:"confidence"`
}

// enhanceResponse mirrors the /api/ai/enhance-text reply.
type enhanceResponse struct {
	EnhancedText string   `json:"enhancedText"`
	Improvements []string `json:"improvements"`
	Confidence   int      `json:"confidence"`
}

// ContentAnalysis mirrors the /api/ai/analyze-content reply.
type ContentAnalysis struct {
	Category struct {
		Value      string `json:"value"`
		Confidence int    `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	} `json:"category"`
	Urgency struct {
		Value      string `json:"value"`
		Confidence int    `json:"confidence"`
		Reasoning  string `json:"reasoning"`
	} `json:"urgency"`
	Sentiment struct {
		Tone      string `json:"tone"`
		Intensity int    `json:"intensity"`
	} `json:"sentiment"`
	KeyEntities      []string `json:"keyEntities"`
	SuggestedActions []string `json:"suggestedActions"`
	Summary          string   `json:"summary"`
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to the civicvoice API on behalf of one user session.
type Client struct {
	http     *resty.Client
	observer func([]Step) // nil disables progress reporting
	log      zerolog.Logger

	// apiTimeout caps ordinary one-shot calls (enhance, analyze). The
	// transcription upload is exempt: it runs as long as the audio needs
	// and is stopped through context cancellation instead.
	apiTimeout time.Duration

	mu    sync.Mutex
	steps []Step
}

// NewClient builds a client for the given API base URL, e.g.
// "http://localhost:8080". observer may be nil.
func NewClient(baseURL, token string, observer func([]Step), log zerolog.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(5 * time.Minute)
	if token != "" {
		httpClient.SetAuthToken(token)
	}
	return &Client{
		http:       httpClient,
		observer:   observer,
		log:        log,
		apiTimeout: config.APIRequestTimeout,
	}
}

// Steps returns a snapshot of the current checklist.
func (c *Client) Steps() []Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

func (c *Client) resetSteps() {
	c.mu.Lock()
	c.steps = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Client) beginStep(step, message string) {
	c.mu.Lock()
	c.steps = append(c.steps, Step{Step: step, Message: message})
	c.mu.Unlock()
	c.notify()
}

func (c *Client) updateStep(step, message string) {
	c.mu.Lock()
	for i := range c.steps {
		if c.steps[i].Step == step {
			c.steps[i].Message = message
		}
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Client) completeStep(step string) {
	c.mu.Lock()
	for i := range c.steps {
		if c.steps[i].Step == step {
			c.steps[i].Completed = true
		}
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Client) notify() {
	if c.observer != nil {
		c.observer(c.Steps())
	}
}

// Transcribe uploads an audio blob and returns the transcription,
// optionally followed by an enhancement pass. Cancellation through ctx
// yields a cancelled result with the checklist cleared; other failures
// keep the completed steps so the caller can show where it broke.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts Options) Result {
	c.resetSteps()

	c.beginStep(StepPreparing, "Preparing audio")
	if len(audio) == 0 {
		return c.fail(errors.New("no audio recorded"))
	}
	if len(audio) > config.MaxAudioBytes {
		return c.fail(fmt.Errorf("audio exceeds the %dMB limit", config.MaxAudioBytes>>20))
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	if opts.MimeType == "" {
		opts.MimeType = "audio/wav"
	}
	c.completeStep(StepPreparing)

	c.beginStep(StepUploading, "Uploading audio 0%")
	reader := &progressReader{
		reader: bytes.NewReader(audio),
		total:  len(audio),
		onProgress: func(percent int) {
			c.updateStep(StepUploading, fmt.Sprintf("Uploading audio %d%%", percent))
		},
		onDone: func() {
			c.completeStep(StepUploading)
			c.beginStep(StepTranscribing, "Transcribing audio")
		},
	}

	var reply transcribeResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio", "recording.wav", opts.MimeType, reader).
		SetMultipartFormData(map[string]string{
			"language":      opts.Language,
			"promptContext": opts.PromptContext,
			"category":      opts.Category,
		}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/ai/transcribe")
	if err != nil {
		if ctx.Err() != nil {
			return c.cancelled()
		}
		return c.fail(fmt.Errorf("transcription upload failed: %w", err))
	}
	if resp.IsError() {
		return c.fail(statusError(resp, apiErr))
	}
	c.completeStep(StepTranscribing)

	result := Result{
		Success:       true,
		Transcription: reply.Transcription,
		Language:      reply.DetectedLanguage,
		Confidence:    reply.Confidence,
	}

	if opts.Enhance && strings.TrimSpace(reply.Transcription) != "" {
		c.beginStep(StepEnhancing, "Improving readability")
		enhanced, err := c.EnhanceText(ctx, reply.Transcription, "grammar_and_clarity")
		if err != nil {
			if ctx.Err() != nil {
				return c.cancelled()
			}
			// Enhancement is best-effort: the raw transcript stands.
			c.log.Warn().Err(err).Msg("enhancement failed, keeping raw transcript")
		} else {
			result.EnhancedText = enhanced
		}
		c.completeStep(StepEnhancing)
	}

	result.Steps = c.Steps()
	return result
}

func (c *Client) fail(err error) Result {
	return Result{Error: err, Steps: c.Steps()}
}

func (c *Client) cancelled() Result {
	c.resetSteps()
	return Result{Cancelled: true}
}

// EnhanceText runs a one-shot text improvement. Empty input is rejected
// before any network call.
func (c *Client) EnhanceText(ctx context.Context, text, mode string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	var reply enhanceResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text, "enhancementType": mode}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/ai/enhance-text")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", statusError(resp, apiErr)
	}
	return reply.EnhancedText, nil
}

// AnalyzeContent runs a one-shot category/urgency/sentiment analysis.
func (c *Client) AnalyzeContent(ctx context.Context, text string) (*ContentAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is required")
	}
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	var reply ContentAnalysis
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		SetResult(&reply).
		SetError(&apiErr).
		Post("/api/ai/analyze-content")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, statusError(resp, apiErr)
	}
	return &reply, nil
}

func statusError(resp *resty.Response, apiErr apiError) error {
	if apiErr.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode(), apiErr.Error)
	}
	return fmt.Errorf("api error (%d)", resp.StatusCode())
}

// progressReader reports upload progress as it is consumed.
type progressReader struct {
	reader     io.Reader
	total      int
	read       int
	lastPct    int
	done       bool
	onProgress func(percent int)
	onDone     func()
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	p.read += n
	if p.total > 0 {
		pct := p.read * 100 / p.total
		if pct != p.lastPct {
			p.lastPct = pct
			p.onProgress(pct)
		}
		if p.read >= p.total && !p.done {
			p.done = true
			p.onDone()
		}
	}
	return n, err
}
