// Package transcription turns uploaded audio into text through the
// generative model and defensively parses whatever the model sends back.
package transcription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/config"

	"github.com/rs/zerolog"
)

// Validation failures, rejected before any provider call.
var (
	ErrEmptyAudio    = errors.New("audio data is empty")
	ErrAudioTooLarge = fmt.Errorf("audio exceeds the %dMB limit", config.MaxAudioBytes>>20)
)

// SupportedFormats lists the audio MIME types the provider accepts as
// inline data. Advertised by the capability probe endpoint.
var SupportedFormats = []string{
	"audio/wav",
	"audio/webm",
	"audio/ogg",
	"audio/mpeg",
	"audio/mp4",
	"audio/flac",
}

// Request carries one transcription job.
type Request struct {
	Audio         []byte
	MimeType      string
	Language      string // BCP-47 hint or "auto"
	PromptContext string
	Category      string
	RealTime      bool
}

// Metadata describes the processed audio.
type Metadata struct {
	AudioSizeBytes int     `json:"audioSizeBytes"`
	WordCount      int     `json:"wordCount"`
	Duration       float64 `json:"durationSeconds"`
}

// Result is a completed transcription.
type Result struct {
	Transcription    string        `json:"transcription"`
	DetectedLanguage string        `json:"detectedLanguage"`
	Confidence       int           `json:"confidence"`
	Metadata         Metadata      `json:"metadata"`
	ProcessingTime   time.Duration `json:"-"`
}

// Service transcribes audio via a Generator.
type Service struct {
	ai  aiclient.Generator
	log zerolog.Logger
}

// NewService constructs the transcription service.
func NewService(ai aiclient.Generator, log zerolog.Logger) *Service {
	return &Service{ai: ai, log: log}
}

// modelReply is the structured format the prompt asks for.
type modelReply struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence int     `json:"confidence"`
	WordCount  int     `json:"wordCount"`
	Duration   float64 `json:"duration"`
}

// Transcribe validates the request, calls the model with the inlined audio
// and parses the reply. A reply that isn't the requested JSON is still used:
// the raw text becomes the transcript at reduced confidence.
func (s *Service) Transcribe(ctx context.Context, req Request) (*Result, error) {
	if len(req.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if len(req.Audio) > config.MaxAudioBytes {
		return nil, ErrAudioTooLarge
	}
	if req.Language == "" {
		req.Language = "auto"
	}
	if req.MimeType == "" {
		req.MimeType = "audio/wav"
	}

	started := time.Now()
	prompt := buildPrompt(req)

	raw, err := s.ai.GenerateWithAudio(ctx, prompt, req.MimeType, req.Audio)
	if err != nil {
		return nil, err
	}

	var reply modelReply
	if !aiclient.ExtractJSON(raw, &reply) || strings.TrimSpace(reply.Text) == "" {
		// The model answered but not in the requested shape. A usable-looking
		// reply is still a transcript, just a less trustworthy one.
		s.log.Warn().Str("language", req.Language).
			Msg("transcription reply was not structured, using raw text")
		reply = modelReply{
			Text:       strings.TrimSpace(raw),
			Confidence: 60,
		}
	}

	if reply.Language == "" {
		reply.Language = req.Language
	}
	if reply.Confidence <= 0 || reply.Confidence > 100 {
		reply.Confidence = 60
	}
	if reply.WordCount == 0 {
		reply.WordCount = len(strings.Fields(reply.Text))
	}

	return &Result{
		Transcription:    reply.Text,
		DetectedLanguage: reply.Language,
		Confidence:       reply.Confidence,
		Metadata: Metadata{
			AudioSizeBytes: len(req.Audio),
			WordCount:      reply.WordCount,
			Duration:       reply.Duration,
		},
		ProcessingTime: time.Since(started),
	}, nil
}

func buildPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Transcribe the attached audio recording exactly as spoken.\n")

	if req.Language == "auto" {
		sb.WriteString("Detect the spoken language automatically.\n")
	} else {
		fmt.Fprintf(&sb, "The speaker is expected to use language %q.\n", req.Language)
	}

	if req.Category != "" {
		fmt.Fprintf(&sb,
			"The recording is a civic complaint about %s submitted to local authorities; prefer formal phrasing and keep place names and public office names intact.\n",
			strings.ReplaceAll(req.Category, "_", " "))
	}
	if req.PromptContext != "" {
		fmt.Fprintf(&sb, "Additional context from the caller: %s\n", req.PromptContext)
	}
	if req.RealTime {
		sb.WriteString("This is one short chunk of a longer live recording; transcribe it standalone without adding punctuation for sentence boundaries you cannot hear.\n")
	}

	sb.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"text": "<transcript>", "language": "<ISO 639-1 code>", "confidence": <0-100>, "wordCount": <int>, "duration": <seconds as number>}`)
	return sb.String()
}
