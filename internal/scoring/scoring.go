// Package scoring holds the pure functions behind complaint priority,
// user reputation and experience tiers. Everything here is deterministic:
// the same inputs always produce the same score, so callers recompute
// rather than increment.
package scoring

import (
	"time"

	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/models"
)

// UrgencyWeight returns the priority weight for an urgency level.
// Unknown levels weigh the same as "low".
func UrgencyWeight(urgency string) int {
	if w, ok := config.UrgencyWeights[urgency]; ok {
		return w
	}
	return config.UrgencyWeights[models.UrgencyLow]
}

// Priority computes a complaint's priority score:
//
//	urgencyWeight*10 + upvotes*2 + comments + max(0, 30-ageDays)
//
// Fresh complaints get a recency boost that decays to zero after 30 days.
func Priority(urgency string, upvotes, comments int, age time.Duration) int {
	ageDays := int(age.Hours() / 24)
	recency := config.PriorityAgeWindowDays - ageDays
	if recency < 0 {
		recency = 0
	}
	return UrgencyWeight(urgency)*config.PriorityUrgencyFactor +
		upvotes*config.PriorityUpvoteFactor +
		comments +
		recency
}

// ComplaintStats is the per-complaint aggregate feeding reputation.
type ComplaintStats struct {
	Upvotes   int
	Downvotes int
	Comments  int
	Resolved  bool
}

// Reputation computes an author's reputation from all of their complaints:
// +2 per upvote, -1 per downvote, +1 per comment received, +5 per resolved
// complaint, floored at zero.
func Reputation(stats []ComplaintStats) int {
	total := 0
	for _, s := range stats {
		total += s.Upvotes*config.ReputationPerUpvote +
			s.Downvotes*config.ReputationPerDownvote +
			s.Comments*config.ReputationPerComment
		if s.Resolved {
			total += config.ReputationResolvedBonus
		}
	}
	if total < config.MinReputation {
		return config.MinReputation
	}
	return total
}

// Tier maps a reputation score to the user experience tier used by the
// suggestion generator.
func Tier(reputation int) string {
	switch {
	case reputation >= config.TierExpertThreshold:
		return "expert"
	case reputation >= config.TierExperiencedThreshold:
		return "experienced"
	case reputation >= config.TierIntermediateThreshold:
		return "intermediate"
	default:
		return "beginner"
	}
}
