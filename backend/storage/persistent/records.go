package storage

import (
	"time"

	"github.com/jghoshh/taskvibe/backend/models"
)

// Helpers shared by the backends so that every one of them applies partial
// updates and state transitions to a record in the same way.

func (f TaskFilter) matches(t *models.Task) bool {
	if t.UserID != f.UserID {
		return false
	}
	if f.Completed != nil && t.Completed != *f.Completed {
		return false
	}
	if f.Urgency != nil && t.Urgency != *f.Urgency {
		return false
	}
	if f.CompletedSince != nil && (t.CompletedAt == nil || t.CompletedAt.Before(*f.CompletedSince)) {
		return false
	}
	return true
}

// newUserRecord fills the defaults of a user that is stored for the first time.
func newUserRecord(user *models.User, now time.Time) models.User {
	u := *user
	if !u.Theme.IsValid() {
		u.Theme = models.ThemeSystem
	}
	if u.XP < 0 {
		u.XP = 0
	}
	u.Level = models.LevelForXP(u.XP)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return u
}

// mergeUserProfile copies the non-zero profile fields of src into dst.
func mergeUserProfile(dst *models.User, src *models.User) {
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
	if src.ProfileImageURL != "" {
		dst.ProfileImageURL = src.ProfileImageURL
	}
	if src.Nickname != "" {
		dst.Nickname = src.Nickname
	}
	if src.Theme.IsValid() {
		dst.Theme = src.Theme
	}
}

func applyUserUpdate(u *models.User, update UserUpdate) {
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.ProfileImageURL != nil {
		u.ProfileImageURL = *update.ProfileImageURL
	}
	if update.Nickname != nil {
		u.Nickname = *update.Nickname
	}
	if update.Theme != nil {
		u.Theme = *update.Theme
	}
	if update.Streak != nil {
		u.Streak = *update.Streak
	}
	if update.CompletedOnboarding != nil {
		u.CompletedOnboarding = *update.CompletedOnboarding
	}
	u.UpdatedAt = updatedAt(update.UpdatedAt)
}

func applyXP(u *models.User, delta int, activeAt *time.Time) {
	u.XP += delta
	if u.XP < 0 {
		u.XP = 0
	}
	u.Level = models.LevelForXP(u.XP)
	if activeAt != nil {
		at := *activeAt
		u.LastActiveDate = &at
		u.UpdatedAt = at
	}
}

// checkTaskUpdate refuses an urgency change on a completed task.
func checkTaskUpdate(t *models.Task, update TaskUpdate) error {
	if update.Urgency != nil && t.Completed && *update.Urgency != t.Urgency {
		return ErrTaskCompleted
	}
	return nil
}

func applyTaskUpdate(t *models.Task, update TaskUpdate) {
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Urgency != nil {
		t.Urgency = *update.Urgency
	}
	t.UpdatedAt = updatedAt(update.UpdatedAt)
}

func applyCompletion(t *models.Task, completed bool, at time.Time) {
	t.Completed = completed
	if completed {
		done := at
		t.CompletedAt = &done
	} else {
		t.CompletedAt = nil
	}
	t.UpdatedAt = at
}

func updatedAt(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
