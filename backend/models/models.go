package models

import (
	"time"
)

// Urgency is the bucket a task is filed under. The string values are part of the wire format.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyMedium    Urgency = "medium"
	UrgencyDelayed   Urgency = "delayed"
)

// Urgencies lists the buckets in display order.
var Urgencies = []Urgency{UrgencyImmediate, UrgencyMedium, UrgencyDelayed}

// IsValid reports whether u is one of the known urgency buckets.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyImmediate, UrgencyMedium, UrgencyDelayed:
		return true
	default:
		return false
	}
}

// Rank orders buckets for display: immediate first, delayed last, anything unknown after that.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 0
	case UrgencyMedium:
		return 1
	case UrgencyDelayed:
		return 2
	default:
		return 3
	}
}

// Theme is the UI colour scheme a user prefers.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// IsValid reports whether t is one of the known themes.
func (t Theme) IsValid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	default:
		return false
	}
}

// Achievement types.
const (
	AchievementWelcome = "welcome"
	AchievementLevel   = "level"
)

// XPPerLevel is the number of experience points between two consecutive levels.
const XPPerLevel = 100

// LevelForXP derives the level cached on a user from their experience points.
// Negative XP is treated as zero so the result is never below 1.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return xp/XPPerLevel + 1
}

// DayStart truncates t to midnight in t's own location.
func DayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// User is a player profile with its XP progress. Level is derived from XP.
type User struct {
	ID                  string     `bson:"_id" json:"id"`
	Email               string     `bson:"email,omitempty" json:"email,omitempty"`
	FirstName           string     `bson:"first_name,omitempty" json:"firstName,omitempty"`
	LastName            string     `bson:"last_name,omitempty" json:"lastName,omitempty"`
	ProfileImageURL     string     `bson:"profile_image_url,omitempty" json:"profileImageUrl,omitempty"`
	Nickname            string     `bson:"nickname,omitempty" json:"nickname,omitempty"`
	Theme               Theme      `bson:"theme" json:"theme"`
	Level               int        `bson:"level" json:"level"`
	XP                  int        `bson:"xp" json:"xp"`
	Streak              int        `bson:"streak" json:"streak"`
	LastActiveDate      *time.Time `bson:"last_active_date,omitempty" json:"lastActiveDate"`
	CompletedOnboarding bool       `bson:"completed_onboarding" json:"completedOnboarding"`
	CreatedAt           time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt           time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Task is a to-do item in one of the urgency buckets. Priority orders it within its bucket.
type Task struct {
	ID          string     `bson:"_id" json:"id"`
	UserID      string     `bson:"user_id" json:"userId"`
	Title       string     `bson:"title" json:"title"`
	Description string     `bson:"description,omitempty" json:"description,omitempty"`
	Urgency     Urgency    `bson:"urgency" json:"urgency"`
	Completed   bool       `bson:"completed" json:"completed"`
	CompletedAt *time.Time `bson:"completed_at" json:"completedAt"`
	Priority    int        `bson:"priority" json:"priority"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Achievement is an unlock in the user's history.
type Achievement struct {
	ID          string    `bson:"_id" json:"id"`
	UserID      string    `bson:"user_id" json:"userId"`
	Type        string    `bson:"type" json:"type"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description" json:"description"`
	Icon        string    `bson:"icon" json:"icon"`
	UnlockedAt  time.Time `bson:"unlocked_at" json:"unlockedAt"`
}

// DailyStat aggregates a user's completions for one calendar day. Date is the day start.
type DailyStat struct {
	ID                 string    `bson:"_id" json:"id"`
	UserID             string    `bson:"user_id" json:"userId"`
	Date               time.Time `bson:"date" json:"date"`
	TasksCompleted     int       `bson:"tasks_completed" json:"tasksCompleted"`
	ImmediateCompleted int       `bson:"immediate_completed" json:"immediateCompleted"`
	MediumCompleted    int       `bson:"medium_completed" json:"mediumCompleted"`
	DelayedCompleted   int       `bson:"delayed_completed" json:"delayedCompleted"`
	XPEarned           int       `bson:"xp_earned" json:"xpEarned"`
}

// DailyStatDelta is a signed adjustment to a DailyStat row. Backends floor every counter at zero.
type DailyStatDelta struct {
	TasksCompleted     int
	ImmediateCompleted int
	MediumCompleted    int
	DelayedCompleted   int
	XPEarned           int
}

// NewDailyStatDelta builds the adjustment for one completion (sign 1) or one
// un-completion (sign -1) of a task in the given bucket worth xp points.
func NewDailyStatDelta(urgency Urgency, xp int, sign int) DailyStatDelta {
	d := DailyStatDelta{TasksCompleted: sign, XPEarned: sign * xp}
	switch urgency {
	case UrgencyImmediate:
		d.ImmediateCompleted = sign
	case UrgencyMedium:
		d.MediumCompleted = sign
	case UrgencyDelayed:
		d.DelayedCompleted = sign
	}
	return d
}

// Apply adds the delta to s, flooring each counter at zero.
func (d DailyStatDelta) Apply(s *DailyStat) {
	s.TasksCompleted = floorAdd(s.TasksCompleted, d.TasksCompleted)
	s.ImmediateCompleted = floorAdd(s.ImmediateCompleted, d.ImmediateCompleted)
	s.MediumCompleted = floorAdd(s.MediumCompleted, d.MediumCompleted)
	s.DelayedCompleted = floorAdd(s.DelayedCompleted, d.DelayedCompleted)
	s.XPEarned = floorAdd(s.XPEarned, d.XPEarned)
}

func floorAdd(v, delta int) int {
	v += delta
	if v < 0 {
		return 0
	}
	return v
}
