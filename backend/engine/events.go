package engine

import (
	"context"
	"time"
)

// Event kinds.
const (
	EventTaskCompleted       = "task_completed"
	EventTaskRestored        = "task_restored"
	EventAchievementUnlocked = "achievement_unlocked"
)

// Event is something the user should be told about, such as a completion or an unlock.
type Event struct {
	UserID  string
	Kind    string
	Title   string
	Message string
	At      time.Time
}

// EventSink receives the events the service produces.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}
