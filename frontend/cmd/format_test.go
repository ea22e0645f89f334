package cmd

import (
	"testing"
	"time"

	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/models"
	"github.com/jghoshh/taskvibe/backend/notifications"
	"github.com/stretchr/testify/assert"
)

func TestXPBar(t *testing.T) {
	assert.Equal(t, "[--------------------] 0/100", xpBar(0))
	assert.Equal(t, "[##########----------] 50/100", xpBar(150))
	assert.Equal(t, "[###################-] 99/100", xpBar(99))
}

func TestFormatTaskListNumbersFromOne(t *testing.T) {
	done := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	out := formatTaskList([]models.Task{
		{Title: "Pay rent", Urgency: models.UrgencyImmediate, Description: "before noon"},
		{Title: "Water plants", Urgency: models.UrgencyDelayed, Completed: true, CompletedAt: &done},
	})
	assert.Contains(t, out, "  1. ")
	assert.Contains(t, out, "Pay rent")
	assert.Contains(t, out, "before noon")
	assert.Contains(t, out, "  2. ")
	assert.Contains(t, out, "done ")

	assert.Contains(t, formatTaskList(nil), "Nothing here yet.")
}

func TestFormatCompletion(t *testing.T) {
	task := &models.Task{Title: "Ship it"}
	out := formatCompletion(&engine.CompleteResult{
		Task: task, XPDelta: 15, LevelBefore: 1, LevelAfter: 2, LevelUp: true,
		Achievement: &models.Achievement{Icon: "*", Title: "Level 2 Reached!", Description: "Reached level 2"},
	})
	assert.Contains(t, out, "+15 XP")
	assert.Contains(t, out, "LEVEL UP  1 -> 2")
	assert.Contains(t, out, "Level 2 Reached!")

	assert.Contains(t, formatCompletion(&engine.CompleteResult{Task: task, XPDelta: -10}), "-10 XP")
	assert.Contains(t, formatCompletion(&engine.CompleteResult{Task: task}), "No change.")
}

func TestFormatUserPrefersNickname(t *testing.T) {
	out := formatUser(&models.User{FirstName: "TaskVibe", LastName: "User", Nickname: "Ace", Level: 3, XP: 230})
	assert.Contains(t, out, "Ace")
	assert.NotContains(t, out, "TaskVibe User")
	assert.Contains(t, out, "30/100")

	assert.Contains(t, formatUser(&models.User{FirstName: "TaskVibe", LastName: "User"}), "TaskVibe User")
}

func TestFormatToasts(t *testing.T) {
	assert.Contains(t, formatToasts(nil), "No new notifications.")
	out := formatToasts([]notifications.Toast{{Title: "Great job!", Message: "Task completed!"}})
	assert.Contains(t, out, "Great job!")
	assert.Contains(t, out, "Task completed!")
}
