package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
	"github.com/jghoshh/taskvibe/lib/utils"
)

// UserFields are the profile fields an identity provider can set.
type UserFields struct {
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// OnboardingInput is what the user picks on the welcome screen. Both fields are optional.
type OnboardingInput struct {
	Nickname string       `json:"nickname,omitempty"`
	Theme    models.Theme `json:"theme,omitempty"`
}

func validateTheme(theme models.Theme) error {
	if !theme.IsValid() {
		return invalid("theme", "Theme must be one of light, dark or system")
	}
	return nil
}

// EnsureUser returns the stored user, creating it from defaults on first sight.
// An existing user is returned as is, progress included.
func (s *Service) EnsureUser(ctx context.Context, defaults models.User) (*models.User, error) {
	if err := requireUser(defaults.ID); err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, defaults.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	defaults.UpdatedAt = s.clock()
	return s.store.UpsertUser(ctx, &defaults)
}

// GetUser returns the stored user.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetUser(ctx, userID)
}

// UpsertUser creates the user or merges the supplied profile fields into it.
// XP, level and onboarding state are never reset by it.
func (s *Service) UpsertUser(ctx context.Context, userID string, fields UserFields) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(fields.Email)
	if email != "" && !utils.ValidateEmail(email) {
		return nil, invalid("email", "Email address is not valid")
	}
	return s.store.UpsertUser(ctx, &models.User{
		ID:              userID,
		Email:           email,
		FirstName:       strings.TrimSpace(fields.FirstName),
		LastName:        strings.TrimSpace(fields.LastName),
		ProfileImageURL: strings.TrimSpace(fields.ProfileImageURL),
		UpdatedAt:       s.clock(),
	})
}

// UpdateUserTheme validates and stores the user's display theme.
func (s *Service) UpdateUserTheme(ctx context.Context, userID string, theme models.Theme) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateTheme(theme); err != nil {
		return nil, err
	}
	return s.store.UpdateUser(ctx, userID, storage.UserUpdate{Theme: &theme, UpdatedAt: s.clock()})
}

// CompleteOnboarding stores the user's choices and marks onboarding done. The
// welcome achievement is unlocked the first time only.
func (s *Service) CompleteOnboarding(ctx context.Context, userID string, in OnboardingInput) (*models.User, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	done := true
	update := storage.UserUpdate{CompletedOnboarding: &done, UpdatedAt: s.clock()}
	if nickname := strings.TrimSpace(in.Nickname); nickname != "" {
		update.Nickname = &nickname
	}
	if in.Theme != "" {
		if err := validateTheme(in.Theme); err != nil {
			return nil, err
		}
		update.Theme = &in.Theme
	}

	before, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UpdateUser(ctx, userID, update)
	if err != nil {
		return nil, err
	}

	if !before.CompletedOnboarding {
		if _, err := s.UnlockAchievement(ctx, userID, WelcomeAchievement()); err != nil {
			return nil, err
		}
	}
	return user, nil
}
