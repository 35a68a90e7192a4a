package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EarthRadiusMeters is the mean earth radius used by the haversine distance
const EarthRadiusMeters = 6371000.0

// Treasure status values
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusReported = "reported"
	StatusBanned   = "banned"
	StatusExpired  = "expired"
)

// Challenge types
const (
	ChallengeNone    = "none"
	ChallengeMimic   = "mimic"
	ChallengeFind    = "find"
	ChallengeQuiz    = "quiz"
	ChallengePhoto   = "photo"
	ChallengeCheckin = "checkin"
)

// Trend score weights, discoveries weighted highest as the strongest
// engagement signal
const (
	TrendWeightLikes       = 3
	TrendWeightShares      = 5
	TrendWeightDiscoveries = 10
	TrendWeightViews       = 1
)

// Discovery radius bounds in meters
const (
	MinDiscoveryRadius     = 5
	MaxDiscoveryRadius     = 200
	DefaultDiscoveryRadius = 50
)

// DefaultExpiry is how long a treasure stays discoverable unless the
// creator picks an explicit expiresAt
const DefaultExpiry = 30 * 24 * time.Hour

// Categories is the closed set of treasure categories
var Categories = []string{"美食", "旅游", "摄影", "运动", "音乐", "艺术", "历史", "购物", "咖啡", "酒吧", "电影", "其他"}

// ValidCategory reports whether c is one of the known categories
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// GeoPoint is a GeoJSON point, coordinates ordered [longitude, latitude]
type GeoPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from a longitude/latitude pair
func NewGeoPoint(lng, lat float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: []float64{lng, lat}}
}

// Lng returns the longitude component
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Lat returns the latitude component
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) < 2 {
		return 0
	}
	return p.Coordinates[1]
}

// TreasureLocation holds the treasure's point plus the human readable
// address info and the discovery radius in meters
type TreasureLocation struct {
	Coordinates     GeoPoint `json:"coordinates" bson:"coordinates"`
	Address         string   `json:"address" bson:"address"`
	City            string   `json:"city" bson:"city"`
	District        string   `json:"district" bson:"district"`
	Landmark        string   `json:"landmark" bson:"landmark"`
	DiscoveryRadius float64  `json:"discoveryRadius" bson:"discoveryRadius"`
}

// ChallengeVerification is the tagged per-type verification payload. Only
// the fields matching the challenge type are populated.
type ChallengeVerification struct {
	QuizQuestion  string   `json:"quizQuestion,omitempty" bson:"quizQuestion,omitempty"`
	QuizAnswer    string   `json:"quizAnswer,omitempty" bson:"quizAnswer,omitempty"`
	PhotoCriteria string   `json:"photoCriteria,omitempty" bson:"photoCriteria,omitempty"`
	ReferenceURL  string   `json:"referenceUrl,omitempty" bson:"referenceUrl,omitempty"`
	CheckinNote   string   `json:"checkinNote,omitempty" bson:"checkinNote,omitempty"`
	FindTargets   []string `json:"findTargets,omitempty" bson:"findTargets,omitempty"`
}

// Challenge describes the optional task attached to a treasure
type Challenge struct {
	Type         string                `json:"type" bson:"type"`
	Instruction  string                `json:"instruction" bson:"instruction"`
	Verification ChallengeVerification `json:"verification" bson:"verification"`
	Difficulty   int                   `json:"difficulty" bson:"difficulty"`
	TimeLimit    int                   `json:"timeLimit" bson:"timeLimit"`
}

// RewardBadge is a badge granted by discovering a treasure
type RewardBadge struct {
	Name        string `json:"name" bson:"name"`
	Icon        string `json:"icon" bson:"icon"`
	Description string `json:"description" bson:"description"`
}

// Rewards holds what a discoverer earns
type Rewards struct {
	Experience    int           `json:"experience" bson:"experience"`
	Coins         int           `json:"coins" bson:"coins"`
	Badges        []RewardBadge `json:"badges" bson:"badges"`
	SpecialReward string        `json:"specialReward" bson:"specialReward"`
}

// TreasureStats holds the derived counters for a treasure
type TreasureStats struct {
	Views       int `json:"views" bson:"views"`
	Likes       int `json:"likes" bson:"likes"`
	Shares      int `json:"shares" bson:"shares"`
	Comments    int `json:"comments" bson:"comments"`
	Discoveries int `json:"discoveries" bson:"discoveries"`
	Attempts    int `json:"attempts" bson:"attempts"`
	SuccessRate int `json:"successRate" bson:"successRate"`
}

// TrendScore computes the composite engagement score used for trending
func (s TreasureStats) TrendScore() int {
	return s.Likes*TrendWeightLikes +
		s.Shares*TrendWeightShares +
		s.Discoveries*TrendWeightDiscoveries +
		s.Views*TrendWeightViews
}

// TreasureSettings holds the creator controlled options
type TreasureSettings struct {
	IsPublic       bool      `json:"isPublic" bson:"isPublic"`
	AllowComments  bool      `json:"allowComments" bson:"allowComments"`
	AllowSharing   bool      `json:"allowSharing" bson:"allowSharing"`
	MaxDiscoverers int       `json:"maxDiscoverers" bson:"maxDiscoverers"`
	ExpiresAt      time.Time `json:"expiresAt" bson:"expiresAt"`
	IsHidden       bool      `json:"isHidden" bson:"isHidden"`
}

// Moderation gates treasure visibility, never exposed to clients
type Moderation struct {
	IsApproved  bool                `json:"isApproved" bson:"isApproved"`
	ReviewedBy  *primitive.ObjectID `json:"reviewedBy,omitempty" bson:"reviewedBy,omitempty"`
	ReviewedAt  *time.Time          `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	ReviewNotes string              `json:"reviewNotes" bson:"reviewNotes"`
	ReportCount int                 `json:"reportCount" bson:"reportCount"`
}

// Discovery records one user's successful discovery of a treasure. At most
// one record exists per (treasure, user) pair.
type Discovery struct {
	User         primitive.ObjectID `json:"user" bson:"user"`
	DiscoveredAt time.Time          `json:"discoveredAt" bson:"discoveredAt"`
	Proof        *DiscoveryProof    `json:"proof,omitempty" bson:"proof,omitempty"`
	Rating       int                `json:"rating,omitempty" bson:"rating,omitempty"`
}

// DiscoveryProof is the optional evidence attached to a discovery
type DiscoveryProof struct {
	Type string `json:"type" bson:"type"`
	URL  string `json:"url" bson:"url"`
	Text string `json:"text" bson:"text"`
}

// Treasure holds the structure for the treasures collection in mongo
type Treasure struct {
	ID           primitive.ObjectID   `json:"_id" bson:"_id,omitempty"`
	Title        string               `json:"title" bson:"title"`
	Description  string               `json:"description" bson:"description"`
	Creator      primitive.ObjectID   `json:"creator" bson:"creator"`
	Location     TreasureLocation     `json:"location" bson:"location"`
	Challenge    Challenge            `json:"challenge" bson:"challenge"`
	Rewards      Rewards              `json:"rewards" bson:"rewards"`
	Stats        TreasureStats        `json:"stats" bson:"stats"`
	Tags         []string             `json:"tags" bson:"tags"`
	Category     string               `json:"category" bson:"category"`
	Settings     TreasureSettings     `json:"settings" bson:"settings"`
	Status       string               `json:"status" bson:"status"`
	Moderation   Moderation           `json:"moderation" bson:"moderation"`
	LikedBy      []primitive.ObjectID `json:"likedBy" bson:"likedBy"`
	DiscoveredBy []Discovery          `json:"discoveredBy" bson:"discoveredBy"`
	CreatedAt    time.Time            `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt" bson:"updatedAt"`
}

// IsExpired reports whether the treasure is past its expiry at the given
// instant. A zero expiresAt means the treasure never expires.
func (t *Treasure) IsExpired(now time.Time) bool {
	return !t.Settings.ExpiresAt.IsZero() && now.After(t.Settings.ExpiresAt)
}

// IsListable reports whether the treasure may appear in nearby or trending
// results right now. Malformed state (empty status) is not listable.
func (t *Treasure) IsListable(now time.Time) bool {
	return t.Status == StatusActive &&
		t.Moderation.IsApproved &&
		!t.Settings.IsHidden &&
		!t.IsExpired(now)
}

// HasCapacity reports whether another discoverer is still admitted.
// maxDiscoverers == 0 means unlimited.
func (t *Treasure) HasCapacity() bool {
	return t.Settings.MaxDiscoverers == 0 || len(t.DiscoveredBy) < t.Settings.MaxDiscoverers
}

// IsDiscoveredBy reports whether the user already has a discovery record
func (t *Treasure) IsDiscoveredBy(userID primitive.ObjectID) bool {
	for _, d := range t.DiscoveredBy {
		if d.User == userID {
			return true
		}
	}
	return false
}

// IsLikedBy reports whether the user is in the likedBy set
func (t *Treasure) IsLikedBy(userID primitive.ObjectID) bool {
	for _, id := range t.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// DistanceFrom returns the great-circle distance in meters between the
// treasure's point and the given coordinate
func (t *Treasure) DistanceFrom(lat, lng float64) float64 {
	return Haversine(t.Location.Coordinates.Lat(), t.Location.Coordinates.Lng(), lat, lng)
}

// Haversine computes the great-circle distance in meters between two
// coordinates given in degrees. Accurate to well under 0.5% for the
// distances this service cares about; callers must not assume sub-meter
// precision.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// SafeTreasure is the client-facing view of a treasure: moderation state
// and the raw likedBy set are stripped, and the viewer's own relation to
// the treasure is precomputed.
type SafeTreasure struct {
	ID           primitive.ObjectID `json:"_id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Creator      primitive.ObjectID `json:"creator"`
	Location     TreasureLocation   `json:"location"`
	Challenge    Challenge          `json:"challenge"`
	Rewards      Rewards            `json:"rewards"`
	Stats        TreasureStats      `json:"stats"`
	Tags         []string           `json:"tags"`
	Category     string             `json:"category"`
	Settings     TreasureSettings   `json:"settings"`
	Status       string             `json:"status"`
	IsLiked      bool               `json:"isLiked"`
	IsDiscovered bool               `json:"isDiscovered"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Safe builds the client-facing view for the given viewer. A zero viewer
// id yields isLiked/isDiscovered false.
func (t *Treasure) Safe(viewer primitive.ObjectID) SafeTreasure {
	s := SafeTreasure{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Creator:     t.Creator,
		Location:    t.Location,
		Challenge:   t.Challenge,
		Rewards:     t.Rewards,
		Stats:       t.Stats,
		Tags:        t.Tags,
		Category:    t.Category,
		Settings:    t.Settings,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if !viewer.IsZero() {
		s.IsLiked = t.IsLikedBy(viewer)
		s.IsDiscovered = t.IsDiscoveredBy(viewer)
	}
	return s
}
