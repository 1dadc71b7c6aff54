package config

import "time"

const (
	// Reputation points awarded per event on a user's complaints.
	ReputationPerUpvote     = 2
	ReputationPerDownvote   = -1
	ReputationPerComment    = 1
	ReputationResolvedBonus = 5
	MinReputation           = 0

	// Priority formula weights.
	PriorityUrgencyFactor = 10
	PriorityUpvoteFactor  = 2
	PriorityAgeWindowDays = 30

	// User experience tiers by reputation.
	TierExpertThreshold       = 1000
	TierExperiencedThreshold  = 500
	TierIntermediateThreshold = 100

	// Audio limits.
	MaxAudioBytes          = 25 << 20
	MaxRecordingDuration   = 300 * time.Second
	BasicRecordingDuration = 120 * time.Second

	// Ordinary API calls time out; transcription uploads rely on
	// context cancellation instead.
	APIRequestTimeout = 10 * time.Second
)

// UrgencyWeights maps complaint urgency to its priority weight.
var UrgencyWeights = map[string]int{
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}
