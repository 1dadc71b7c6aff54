// Package suggestion generates actionable remediation advice for a
// complaint, tuned to the author's experience tier, and persists it onto
// the complaint. Generation is best-effort enrichment: callers run it in
// the background and never fail the triggering operation on error.
package suggestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civicvoice/backend/internal/aiclient"
	"civicvoice/backend/internal/models"
	"civicvoice/backend/internal/scoring"
	"civicvoice/backend/internal/storage"

	"github.com/rs/zerolog"
)

// routingGuidance maps a complaint category to the authorities that
// typically own it. The values feed the prompt and the fallback contacts.
var routingGuidance = map[string]string{
	models.CategoryInfrastructure: "Public Works Department (PWD) or the Municipal Corporation engineering wing",
	models.CategoryPublicSafety:   "local police station or the fire department",
	models.CategoryEnvironment:    "State Pollution Control Board",
	models.CategoryTransportation: "Regional Transport Office (RTO) or the traffic police",
	models.CategoryHealth:         "Primary Health Centre (PHC) or the District Health Officer",
	models.CategoryEducation:      "Block or District Education Officer",
	models.CategoryUtilities:      "the electricity or water utility board",
	models.CategoryGovernance:     "the RTI cell or the Public Grievance Officer",
	models.CategoryOther:          "your local municipal office or gram panchayat",
}

// tierInstructions adjusts how hands-on the advice should be.
var tierInstructions = map[string]string{
	"beginner":     "The author is new to civic processes. Spell out every step: where to go, what to carry, what to say, and what a receipt or acknowledgement number looks like.",
	"intermediate": "The author has filed complaints before. Give concrete steps with office names and expected turnaround, skipping the basics.",
	"experienced":  "The author knows the local escalation ladder. Focus on the effective escalation path, relevant acts or service-level rules, and how to apply pressure when deadlines lapse.",
	"expert":       "The author works at a systemic level. Frame the advice around policy levers, RTI requests, public accountability mechanisms and coordinated community action.",
}

// Service builds suggestion prompts and persists parsed results.
type Service struct {
	ai    aiclient.Generator
	store storage.Storage
	log   zerolog.Logger
}

// NewService constructs the suggestion generator.
func NewService(ai aiclient.Generator, store storage.Storage, log zerolog.Logger) *Service {
	return &Service{ai: ai, store: store, log: log}
}

type suggestionReply struct {
	Content          string   `json:"content"`
	ActionSteps      []string `json:"actionSteps"`
	RelevantContacts []string `json:"relevantContacts"`
	ExpectedTimeline string   `json:"expectedTimeline"`
	UrgencyLevel     string   `json:"urgencyLevel"`
	Confidence       int      `json:"confidence"`
}

// Generate asks the model for remediation advice and persists it onto the
// complaint. A malformed reply degrades to the generic fallback suggestion
// rather than failing the operation.
func (s *Service) Generate(ctx context.Context, complaint *models.Complaint, user *models.User) (*models.AISuggestion, error) {
	tier := scoring.Tier(user.Reputation)

	raw, err := s.ai.GenerateText(ctx, buildPrompt(complaint, tier))

	var reply suggestionReply
	switch {
	case err != nil:
		s.log.Warn().Err(err).Str("complaint_id", complaint.ID).
			Msg("suggestion generation call failed, using fallback")
		reply = fallbackReply(complaint)
	case !aiclient.ExtractJSON(raw, &reply) || strings.TrimSpace(reply.Content) == "":
		s.log.Warn().Str("complaint_id", complaint.ID).
			Msg("suggestion reply was not structured, using fallback")
		reply = fallbackReply(complaint)
	}

	if reply.UrgencyLevel == "" {
		reply.UrgencyLevel = complaint.Urgency
	}
	if reply.Confidence <= 0 || reply.Confidence > 100 {
		reply.Confidence = 50
	}
	if reply.ActionSteps == nil {
		reply.ActionSteps = []string{}
	}
	if reply.RelevantContacts == nil {
		reply.RelevantContacts = []string{}
	}

	suggestion := &models.AISuggestion{
		Content:          reply.Content,
		ActionSteps:      reply.ActionSteps,
		RelevantContacts: reply.RelevantContacts,
		ExpectedTimeline: reply.ExpectedTimeline,
		UrgencyLevel:     reply.UrgencyLevel,
		UserLevel:        tier,
		Confidence:       reply.Confidence,
		GeneratedAt:      time.Now(),
		IsGenerated:      true,
	}

	if err := s.store.SetAISuggestion(complaint.ID, suggestion); err != nil {
		return nil, fmt.Errorf("persist suggestion: %w", err)
	}
	return suggestion, nil
}

// fallbackReply is the generic advice used when the model is unusable.
func fallbackReply(complaint *models.Complaint) suggestionReply {
	authority := routingGuidance[complaint.Category]
	if authority == "" {
		authority = routingGuidance[models.CategoryOther]
	}
	return suggestionReply{
		Content: "Start with your local municipal office. Describe the issue in writing, ask for an " +
			"acknowledgement number, and follow up if you receive no response within 15 working days.",
		ActionSteps: []string{
			"Write down the issue with dates, location and photos if available",
			"Submit the complaint to " + authority,
			"Ask for a written acknowledgement or complaint number",
			"Follow up after 15 working days if unresolved",
		},
		RelevantContacts: []string{authority},
		ExpectedTimeline: "15-30 working days",
		UrgencyLevel:     complaint.Urgency,
		Confidence:       30,
	}
}

func buildPrompt(complaint *models.Complaint, tier string) string {
	authority := routingGuidance[complaint.Category]
	if authority == "" {
		authority = routingGuidance[models.CategoryOther]
	}

	var sb strings.Builder
	sb.WriteString("You advise citizens on resolving civic complaints in a three-tier governance system: ")
	sb.WriteString("municipal/panchayat bodies handle local services, district administration handles escalations and inter-department issues, and state departments own policy and final appeals.\n\n")

	fmt.Fprintf(&sb, "Complaint:\nTitle: %s\nCategory: %s\nUrgency: %s\nLocation: %s\nDescription: %s\n\n",
		complaint.Title, complaint.Category, complaint.Urgency, complaintLocation(complaint), complaint.Description)

	fmt.Fprintf(&sb, "Complaints in this category are normally handled by %s.\n\n", authority)
	fmt.Fprintf(&sb, "%s\n", tierInstructions[tier])

	sb.WriteString("\nRespond with exactly one JSON object and nothing else:\n")
	sb.WriteString(`{"content": "<overall advice>", "actionSteps": ["<step>", ...], ` +
		`"relevantContacts": ["<office or role>", ...], "expectedTimeline": "<duration>", ` +
		`"urgencyLevel": "<low|medium|high|critical>", "confidence": <0-100>}`)
	return sb.String()
}

func complaintLocation(c *models.Complaint) string {
	parts := []string{c.Address}
	for _, p := range []string{c.City, c.District, c.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
