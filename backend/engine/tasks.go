package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// CreateTaskInput is what a caller supplies for a new task.
type CreateTaskInput struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Urgency     models.Urgency `json:"urgency"`
}

// TaskPatch is a partial task update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Urgency     *models.Urgency `json:"urgency,omitempty"`
	Completed   *bool           `json:"completed,omitempty"`
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "Title is required")
	}
	return title, nil
}

func validateUrgency(u models.Urgency) error {
	if !u.IsValid() {
		return invalid("urgency", "Urgency must be one of immediate, medium or delayed")
	}
	return nil
}

// CreateTask validates the input and stores an active task at the back of its bucket.
func (s *Service) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (*models.Task, error) {
	if err := s.requireStoredUser(ctx, userID); err != nil {
		return nil, err
	}
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	if err := validateUrgency(in.Urgency); err != nil {
		return nil, err
	}

	priority, err := s.AssignPriority(ctx, userID, in.Urgency)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	return s.store.AddTask(ctx, &models.Task{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Urgency:     in.Urgency,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// ListTasks returns the user's active or completed tasks in display order.
func (s *Service) ListTasks(ctx context.Context, userID string, completed bool) ([]models.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	tasks, err := s.store.FindTasks(ctx, storage.TaskFilter{UserID: userID, Completed: &completed})
	if err != nil {
		return nil, err
	}
	SortTasks(tasks)
	return tasks, nil
}

// GetTask returns one of the user's tasks. Tasks of other users are ErrNotFound.
func (s *Service) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, taskID, userID)
}

// UpdateTask applies a partial edit. Priority is never recomputed. A completion
// change goes through CompleteTask or UncompleteTask so XP and daily stats follow it:
// un-completing happens before the edit and completing after it, so an urgency change
// in the same patch lands while the task is active. A completed task keeps the
// urgency its completion was booked under.
func (s *Service) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) (*models.Task, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	update := storage.TaskUpdate{}
	if patch.Title != nil {
		title, err := validateTitle(*patch.Title)
		if err != nil {
			return nil, err
		}
		update.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		update.Description = &desc
	}
	if patch.Urgency != nil {
		if err := validateUrgency(*patch.Urgency); err != nil {
			return nil, err
		}
		update.Urgency = patch.Urgency
	}

	if patch.Completed != nil && !*patch.Completed {
		if _, err := s.UncompleteTask(ctx, userID, taskID); err != nil {
			return nil, err
		}
	}

	update.UpdatedAt = s.clock()
	task, err := s.store.UpdateTask(ctx, taskID, userID, update)
	if errors.Is(err, storage.ErrTaskCompleted) {
		return nil, invalid("urgency", "Urgency of a completed task cannot be changed")
	}
	if err != nil {
		return nil, err
	}

	if patch.Completed != nil && *patch.Completed {
		result, err := s.CompleteTask(ctx, userID, taskID)
		if err != nil {
			return nil, err
		}
		task = result.Task
	}
	return task, nil
}

// DeleteTask removes the task for good. XP and daily stats already earned stay.
func (s *Service) DeleteTask(ctx context.Context, userID, taskID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	return s.store.DeleteTask(ctx, taskID, userID)
}
