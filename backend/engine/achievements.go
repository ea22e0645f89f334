package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jghoshh/taskvibe/backend/models"
)

// AchievementInput describes an unlock. UnlockedAt is always set by the service.
type AchievementInput struct {
	Type        string
	Title       string
	Description string
	Icon        string
}

const defaultAchievementIcon = "fas fa-rocket"

// LevelUpAchievement is unlocked once per level gain and names the level reached.
func LevelUpAchievement(level int) AchievementInput {
	return AchievementInput{
		Type:        models.AchievementLevel,
		Title:       "Level Up!",
		Description: fmt.Sprintf("Reached Level %d", level),
		Icon:        defaultAchievementIcon,
	}
}

// WelcomeAchievement is unlocked when onboarding is completed.
func WelcomeAchievement() AchievementInput {
	return AchievementInput{
		Type:        models.AchievementWelcome,
		Title:       "Welcome Aboard!",
		Description: "Started your TaskVibe journey",
		Icon:        defaultAchievementIcon,
	}
}

// UnlockAchievement appends an achievement to the user's history.
// Achievements are never updated or removed afterwards.
func (s *Service) UnlockAchievement(ctx context.Context, userID string, in AchievementInput) (*models.Achievement, error) {
	if err := s.requireStoredUser(ctx, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Type) == "" {
		return nil, invalid("type", "Achievement type is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("title", "Achievement title is required")
	}
	if in.Icon == "" {
		in.Icon = defaultAchievementIcon
	}

	now := s.clock()
	achievement, err := s.store.AddAchievement(ctx, &models.Achievement{
		UserID:      userID,
		Type:        in.Type,
		Title:       in.Title,
		Description: in.Description,
		Icon:        in.Icon,
		UnlockedAt:  now,
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, Event{UserID: userID, Kind: EventAchievementUnlocked, Title: achievement.Title, Message: achievement.Description, At: now})
	return achievement, nil
}

// ListAchievements returns the user's achievements, newest first.
func (s *Service) ListAchievements(ctx context.Context, userID string) ([]models.Achievement, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.FindAchievements(ctx, userID, 0)
}
