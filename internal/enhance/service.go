// Package enhance improves transcribed complaint text and extracts a
// structured content analysis from it, both via the generative model with
// the same defensive-parse discipline as transcription.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/models"

	"github.com/rs/zerolog"
)

// ErrEmptyText rejects enhancement/analysis of blank input before any
// provider call.
var ErrEmptyText = errors.New("text is empty")

// Enhancement modes.
const (
	ModeGrammar           = "grammar"
	ModeClarity           = "clarity"
	ModeFormal            = "formal"
	ModeGrammarAndClarity = "grammar_and_clarity"
)

// EnhanceRequest asks for improved complaint text.
type EnhanceRequest struct {
	Text     string
	Language string
	Context  string
	Mode     string
}

// EnhanceResult is the improved text plus human-readable notes.
type EnhanceResult struct {
	EnhancedText   string        `json:"enhancedText"`
	Improvements   []string      `json:"improvements"`
	Confidence     int           `json:"confidence"`
	ProcessingTime time.Duration `json:"-"`
}

// AnalyzeRequest asks for a structured read of complaint text.
type AnalyzeRequest struct {
	Text     string
	Language string
	Context  string
}

// Judgement is a classified value with confidence and reasoning.
type Judgement struct {
	Value      string `json:"value"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// Sentiment is the detected emotional tone of the text.
type Sentiment struct {
	Tone      string `json:"tone"`
	Intensity int    `json:"intensity"`
}

// Analysis is the structured bundle feeding the complaint-draft preview.
// It must always be usable: parse failures produce a low-confidence
// default, never an error.
type Analysis struct {
	Category         Judgement `json:"category"`
	Urgency          Judgement `json:"urgency"`
	Sentiment        Sentiment `json:"sentiment"`
	KeyEntities      []string  `json:"keyEntities"`
	SuggestedActions []string  `json:"suggestedActions"`
	Summary          string    `json:"summary"`
}

// Service runs enhancement and analysis calls.
type Service struct {
	ai  aiclient.Generator
	log zerolog.Logger
}

// NewService constructs the enhancement service.
func NewService(ai aiclient.Generator, log zerolog.Logger) *Service {
	return &Service{ai: ai, log: log}
}

type enhanceReply struct {
	EnhancedText string   `json:"enhancedText"`
	Improvements []string `json:"improvements"`
	Confidence   int      `json:"confidence"`
}

// EnhanceText improves the given text according to the enhancement mode.
// Parse failure degrades to the raw reply as the enhanced text.
func (s *Service) EnhanceText(ctx context.Context, req EnhanceRequest) (*EnhanceResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}
	if req.Mode == "" {
		req.Mode = ModeGrammarAndClarity
	}

	started := time.Now()
	raw, err := s.ai.GenerateText(ctx, buildEnhancePrompt(req))
	if err != nil {
		return nil, err
	}

	var reply enhanceReply
	if !aiclient.ExtractJSON(raw, &reply) || strings.TrimSpace(reply.EnhancedText) == "" {
		s.log.Warn().Msg("enhancement reply was not structured, using raw text")
		reply = enhanceReply{
			EnhancedText: strings.TrimSpace(raw),
			Improvements: []string{},
			Confidence:   60,
		}
	}
	if reply.Confidence <= 0 || reply.Confidence > 100 {
		reply.Confidence = 60
	}
	if reply.Improvements == nil {
		reply.Improvements = []string{}
	}

	return &EnhanceResult{
		EnhancedText:   reply.EnhancedText,
		Improvements:   reply.Improvements,
		Confidence:     reply.Confidence,
		ProcessingTime: time.Since(started),
	}, nil
}

// AnalyzeContent classifies text into category/urgency/sentiment plus
// extracted entities, actions and a summary. The preview UI consumes this
// directly, so a malformed reply yields the default bundle instead of an
// error.
func (s *Service) AnalyzeContent(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	raw, err := s.ai.GenerateText(ctx, buildAnalyzePrompt(req))
	if err != nil {
		return nil, err
	}

	var analysis Analysis
	if !aiclient.ExtractJSON(raw, &analysis) || analysis.Category.Value == "" {
		s.log.Warn().Msg("analysis reply was not structured, returning default bundle")
		return defaultAnalysis(), nil
	}

	if !models.ValidCategories[analysis.Category.Value] {
		analysis.Category = Judgement{Value: models.CategoryOther, Confidence: 30,
			Reasoning: "model suggested an unknown category"}
	}
	if !models.ValidUrgencies[analysis.Urgency.Value] {
		analysis.Urgency = Judgement{Value: models.UrgencyMedium, Confidence: 30,
			Reasoning: "model suggested an unknown urgency"}
	}
	if analysis.KeyEntities == nil {
		analysis.KeyEntities = []string{}
	}
	if analysis.SuggestedActions == nil {
		analysis.SuggestedActions = []string{}
	}
	return &analysis, nil
}

// defaultAnalysis is the fixed low-confidence bundle used when the model
// reply cannot be parsed.
func defaultAnalysis() *Analysis {
	return &Analysis{
		Category:         Judgement{Value: models.CategoryOther, Confidence: 20, Reasoning: "automatic classification unavailable"},
		Urgency:          Judgement{Value: models.UrgencyMedium, Confidence: 20, Reasoning: "automatic classification unavailable"},
		Sentiment:        Sentiment{Tone: "neutral", Intensity: 0},
		KeyEntities:      []string{},
		SuggestedActions: []string{},
		Summary:          "",
	}
}

func buildEnhancePrompt(req EnhanceRequest) string {
	var sb strings.Builder
	sb.WriteString("You are editing the text of a civic complaint before it is submitted to local authorities.\n")

	switch req.Mode {
	case ModeGrammar:
		sb.WriteString("Fix grammar and spelling only; keep wording and tone untouched.\n")
	case ModeClarity:
		sb.WriteString("Rewrite for clarity and concision while preserving every stated fact.\n")
	case ModeFormal:
		sb.WriteString("Rewrite in formal register suitable for an official grievance filing.\n")
	default:
		sb.WriteString("Fix grammar and spelling and improve clarity while preserving every stated fact.\n")
	}

	if req.Language != "" && req.Language != "auto" {
		fmt.Fprintf(&sb, "Keep the text in language %q.\n", req.Language)
	}
	if req.Context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", req.Context)
	}

	fmt.Fprintf(&sb, "\nText:\n%s\n", req.Text)
	sb.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"enhancedText": "<improved text>", "improvements": ["<note>", ...], "confidence": <0-100>}`)
	return sb.String()
}

func buildAnalyzePrompt(req AnalyzeRequest) string {
	var sb strings.Builder
	sb.WriteString("Analyze this civic complaint text for a municipal grievance platform.\n")
	if req.Context != "" {
		fmt.Fprintf(&sb, "Context: %s\n", req.Context)
	}
	fmt.Fprintf(&sb, "\nText:\n%s\n", req.Text)

	sb.WriteString("\nCategories: infrastructure, public_safety, environment, transportation, health, education, utilities, governance, other.\n")
	sb.WriteString("Urgency levels: low, medium, high, critical.\n")
	sb.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"category": {"value": "...", "confidence": <0-100>, "reasoning": "..."}, ` +
		`"urgency": {"value": "...", "confidence": <0-100>, "reasoning": "..."}, ` +
		`"sentiment": {"tone": "...", "intensity": <0-100>}, ` +
		`"keyEntities": ["..."], "suggestedActions": ["..."], "summary": "..."}`)
	return sb.String()
}
