package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jghoshh/taskvibe/backend/models"
)

// MemoryStorage keeps every entity in process memory. A single RWMutex guards all
// maps, which also makes the read-modify-write adjustments atomic.
type MemoryStorage struct {
	mu           sync.RWMutex
	users        map[string]models.User
	tasks        map[string]models.Task
	achievements map[string]models.Achievement
	dailyStats   map[string]models.DailyStat
}

// NewMemoryStorage creates an empty in-memory store. Connect is a no-op for it.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:        map[string]models.User{},
		tasks:        map[string]models.Task{},
		achievements: map[string]models.Achievement{},
		dailyStats:   map[string]models.DailyStat{},
	}
}

// Connect and Disconnect are no-ops for the in-memory store.
func (m *MemoryStorage) Connect(ctx context.Context) error    { return nil }
func (m *MemoryStorage) Disconnect(ctx context.Context) error { return nil }

func dailyStatKey(userID string, day time.Time) string {
	return userID + "|" + day.Format("2006-01-02")
}

// GetUser finds a user by id.
func (m *MemoryStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

// UpsertUser inserts the user or merges its profile fields into the stored one.
func (m *MemoryStorage) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := user.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}

	existing, ok := m.users[user.ID]
	if !ok {
		u := newUserRecord(user, now)
		m.users[u.ID] = u
		return &u, nil
	}

	mergeUserProfile(&existing, user)
	existing.UpdatedAt = now
	m.users[existing.ID] = existing
	return &existing, nil
}

// UpdateUser applies a partial profile update.
func (m *MemoryStorage) UpdateUser(ctx context.Context, userID string, update UserUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	applyUserUpdate(&u, update)
	m.users[userID] = u
	return &u, nil
}

// AdjustUserXP adds delta under the store lock and returns the user before and after.
func (m *MemoryStorage) AdjustUserXP(ctx context.Context, userID string, delta int, activeAt *time.Time) (*models.User, *models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, nil, ErrNotFound
	}
	before := u
	applyXP(&u, delta, activeAt)
	m.users[userID] = u
	return &before, &u, nil
}

// AddTask stores a new task, assigning an id when it has none.
func (m *MemoryStorage) AddTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := *task
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	m.tasks[t.ID] = t
	return &t, nil
}

// GetTask finds one of the user's tasks.
func (m *MemoryStorage) GetTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	return &t, nil
}

// FindTasks returns the tasks matching filter.
func (m *MemoryStorage) FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tasks := []models.Task{}
	for _, t := range m.tasks {
		if filter.matches(&t) {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

// CountTasks counts the tasks matching filter.
func (m *MemoryStorage) CountTasks(ctx context.Context, filter TaskFilter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, t := range m.tasks {
		if filter.matches(&t) {
			n++
		}
	}
	return n, nil
}

// MaxPriority returns the highest priority among the user's active tasks in the bucket, or 0.
func (m *MemoryStorage) MaxPriority(ctx context.Context, userID string, urgency models.Urgency) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	max := 0
	for _, t := range m.tasks {
		if t.UserID == userID && t.Urgency == urgency && !t.Completed && t.Priority > max {
			max = t.Priority
		}
	}
	return max, nil
}

// UpdateTask applies a partial task edit.
func (m *MemoryStorage) UpdateTask(ctx context.Context, taskID, userID string, update TaskUpdate) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	if err := checkTaskUpdate(&t, update); err != nil {
		return nil, err
	}
	applyTaskUpdate(&t, update)
	m.tasks[taskID] = t
	return &t, nil
}

// SetTaskCompletion flips the completion state under the store lock.
func (m *MemoryStorage) SetTaskCompletion(ctx context.Context, taskID, userID string, completed bool, at time.Time) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, ErrNotFound
	}
	if t.Completed == completed {
		return nil, ErrUnchanged
	}
	before := t
	applyCompletion(&t, completed, at)
	m.tasks[taskID] = t
	return &before, nil
}

// DeleteTask removes one of the user's tasks.
func (m *MemoryStorage) DeleteTask(ctx context.Context, taskID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok || t.UserID != userID {
		return ErrNotFound
	}
	delete(m.tasks, taskID)
	return nil
}

// AddAchievement appends an achievement.
func (m *MemoryStorage) AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := *achievement
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	m.achievements[a.ID] = a
	return &a, nil
}

// FindAchievements returns the user's achievements newest first, at most limit when limit > 0.
func (m *MemoryStorage) FindAchievements(ctx context.Context, userID string, limit int) ([]models.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := []models.Achievement{}
	for _, a := range m.achievements {
		if a.UserID == userID {
			found = append(found, a)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].UnlockedAt.After(found[j].UnlockedAt)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

// GetDailyStat returns the user's row for day.
func (m *MemoryStorage) GetDailyStat(ctx context.Context, userID string, day time.Time) (*models.DailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.dailyStats[dailyStatKey(userID, day)]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

// AdjustDailyStat applies delta to the day's row, creating it first when missing.
func (m *MemoryStorage) AdjustDailyStat(ctx context.Context, userID string, day time.Time, delta models.DailyStatDelta) (*models.DailyStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := dailyStatKey(userID, day)
	s, ok := m.dailyStats[key]
	if !ok {
		s = models.DailyStat{ID: uuid.NewString(), UserID: userID, Date: day}
	}
	delta.Apply(&s)
	m.dailyStats[key] = s
	return &s, nil
}

// FindDailyStats returns the rows with from <= date < to, oldest first.
func (m *MemoryStorage) FindDailyStats(ctx context.Context, userID string, from, to time.Time) ([]models.DailyStat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := []models.DailyStat{}
	for _, s := range m.dailyStats {
		if s.UserID == userID && !s.Date.Before(from) && s.Date.Before(to) {
			found = append(found, s)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].Date.Before(found[j].Date)
	})
	return found, nil
}
