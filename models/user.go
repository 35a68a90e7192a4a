package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxLevel caps progression
const MaxLevel = 100

// Milestone badges granted on discovery counts
const (
	BadgeFirstTreasure  = "first_treasure"
	BadgeTreasureHunter = "treasure_hunter"
	BadgeTreasureMaster = "treasure_master"
)

// Badge is a named achievement on a user's profile
type Badge struct {
	Name     string    `json:"name" bson:"name"`
	Icon     string    `json:"icon" bson:"icon"`
	EarnedAt time.Time `json:"earnedAt" bson:"earnedAt"`
}

// Level holds a user's progression state
type Level struct {
	CurrentLevel int     `json:"currentLevel" bson:"currentLevel"`
	Experience   int     `json:"experience" bson:"experience"`
	Badges       []Badge `json:"badges" bson:"badges"`
}

// UserStats holds the per-user activity counters
type UserStats struct {
	TreasuresCreated    int `json:"treasuresCreated" bson:"treasuresCreated"`
	TreasuresDiscovered int `json:"treasuresDiscovered" bson:"treasuresDiscovered"`
	TotalViews          int `json:"totalViews" bson:"totalViews"`
	TotalLikes          int `json:"totalLikes" bson:"totalLikes"`
	FollowersCount      int `json:"followersCount" bson:"followersCount"`
	FollowingCount      int `json:"followingCount" bson:"followingCount"`
}

// NotificationPreferences holds the user's opt-in flags
type NotificationPreferences struct {
	Email bool `json:"email" bson:"email"`
	Push  bool `json:"push" bson:"push"`
}

// UserSettings holds per-user preferences
type UserSettings struct {
	Notifications  NotificationPreferences `json:"notifications" bson:"notifications"`
	PrivateProfile bool                    `json:"privateProfile" bson:"privateProfile"`
}

// User holds the structure for the users collection in mongo
type User struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Username  string             `json:"username" bson:"username"`
	Email     string             `json:"email" bson:"email"`
	Password  string             `json:"-" bson:"password"`
	Nickname  string             `json:"nickname" bson:"nickname"`
	Avatar    string             `json:"avatar" bson:"avatar"`
	Bio       string             `json:"bio" bson:"bio"`
	Level     Level              `json:"level" bson:"level"`
	Coins     int                `json:"coins" bson:"coins"`
	Stats     UserStats          `json:"stats" bson:"stats"`
	Settings  UserSettings       `json:"settings" bson:"settings"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// HasBadge reports whether the user already holds the named badge
func (u *User) HasBadge(name string) bool {
	for _, b := range u.Level.Badges {
		if b.Name == name {
			return true
		}
	}
	return false
}

// LevelForExperience inverts the progression curve: the level a user with
// the given total experience sits at, clamped to [1, MaxLevel]. Negative
// experience is treated as zero.
func LevelForExperience(exp int) int {
	if exp < 0 {
		exp = 0
	}
	level := int(math.Floor(math.Sqrt(float64(exp)/100))) + 1
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// ExpForLevel returns the display-only experience threshold for reaching
// the given level. This geometric curve drives progress bars only; it is
// intentionally not the inverse of LevelForExperience and never gates a
// level mutation.
func ExpForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(math.Floor(100 * math.Pow(1.5, float64(level-1))))
}

// LevelProgress is the display payload for a user's progress bar
type LevelProgress struct {
	CurrentLevel int     `json:"currentLevel"`
	Experience   int     `json:"experience"`
	NextLevelExp int     `json:"nextLevelExp"`
	Progress     float64 `json:"progress"`
}

// ProgressToward builds the display-only progress snapshot for the user
func (u *User) ProgressToward() LevelProgress {
	next := ExpForLevel(u.Level.CurrentLevel + 1)
	p := LevelProgress{
		CurrentLevel: u.Level.CurrentLevel,
		Experience:   u.Level.Experience,
		NextLevelExp: next,
	}
	if next > 0 {
		p.Progress = math.Min(1, float64(u.Level.Experience)/float64(next))
	} else {
		p.Progress = 1
	}
	return p
}

// SafeUser is the public view of a user profile
type SafeUser struct {
	ID        primitive.ObjectID `json:"_id"`
	Username  string             `json:"username"`
	Nickname  string             `json:"nickname"`
	Avatar    string             `json:"avatar"`
	Bio       string             `json:"bio"`
	Level     Level              `json:"level"`
	Coins     int                `json:"coins"`
	Stats     UserStats          `json:"stats"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Safe strips credentials and settings from the profile
func (u *User) Safe() SafeUser {
	return SafeUser{
		ID:        u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Avatar:    u.Avatar,
		Bio:       u.Bio,
		Level:     u.Level,
		Coins:     u.Coins,
		Stats:     u.Stats,
		CreatedAt: u.CreatedAt,
	}
}

// Moderator holds the structure for the moderators collection in mongo
type Moderator struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email    string             `json:"email" bson:"email"`
	Password string             `json:"-" bson:"password"`
	Name     string             `json:"name" bson:"name"`
}
