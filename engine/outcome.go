package engine

import "github.com/Luciuswang/douyin-treasure/models"

// OutcomeKind classifies the result of a discovery attempt
type OutcomeKind string

// Discovery outcome kinds
const (
	OutcomeSuccess           OutcomeKind = "success"
	OutcomeNotFound          OutcomeKind = "not_found"
	OutcomeAlreadyDiscovered OutcomeKind = "already_discovered"
	OutcomeExpired           OutcomeKind = "expired"
	OutcomeCapacityReached   OutcomeKind = "capacity_reached"
	OutcomeTooFar            OutcomeKind = "too_far"
	OutcomeInvalidInput      OutcomeKind = "invalid_input"
	OutcomeUnavailable       OutcomeKind = "unavailable"
)

// LevelUp describes a level change triggered by an experience grant
type LevelUp struct {
	OldLevel    int    `json:"oldLevel"`
	NewLevel    int    `json:"newLevel"`
	RewardCoins int    `json:"rewardCoins"`
	Badge       string `json:"badge,omitempty"`
}

// DiscoveryResult is the outcome of a discovery attempt. Distance and
// RequiredDistance are populated on the too-far outcome; Rewards and
// LevelUp only on success.
type DiscoveryResult struct {
	Kind             OutcomeKind          `json:"kind"`
	Message          string               `json:"message"`
	Distance         float64              `json:"distance,omitempty"`
	RequiredDistance float64              `json:"requiredDistance,omitempty"`
	Rewards          *models.Rewards      `json:"rewards,omitempty"`
	LevelUp          *LevelUp             `json:"levelUp,omitempty"`
	Treasure         *models.SafeTreasure `json:"treasure,omitempty"`
}

// ExperienceResult is the outcome of an experience grant
type ExperienceResult struct {
	Experience int      `json:"experience"`
	Level      int      `json:"level"`
	LevelUp    *LevelUp `json:"levelUp,omitempty"`
}

// LikeResult is the outcome of a like toggle
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}
