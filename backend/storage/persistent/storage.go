package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jghoshh/taskvibe/backend/models"
)

// ErrNotFound is returned when an entity does not exist or is owned by another user.
// The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("not found")

// ErrUnchanged is returned by SetTaskCompletion when the task is already in the requested state.
var ErrUnchanged = errors.New("task already in requested state")

// ErrTaskCompleted is returned by UpdateTask when it would move a completed task to
// another urgency bucket. The bucket a completion was booked under must not change.
var ErrTaskCompleted = errors.New("task is completed")

// Backend names accepted by NewStorage.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

// TaskFilter narrows FindTasks and CountTasks. UserID is required; nil fields are ignored.
type TaskFilter struct {
	UserID         string
	Completed      *bool
	Urgency        *models.Urgency
	CompletedSince *time.Time
}

// TaskUpdate carries the mutable task fields. Nil fields are left untouched.
// Urgency may only change while the task is active.
type TaskUpdate struct {
	Title       *string
	Description *string
	Urgency     *models.Urgency
	UpdatedAt   time.Time
}

// UserUpdate carries the mutable user profile fields. Nil fields are left untouched.
// XP and level are not here on purpose: they only change through AdjustUserXP.
type UserUpdate struct {
	Email               *string
	FirstName           *string
	LastName            *string
	ProfileImageURL     *string
	Nickname            *string
	Theme               *models.Theme
	Streak              *int
	CompletedOnboarding *bool
	UpdatedAt           time.Time
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement. Every task operation takes the requesting user id
// and treats a task owned by someone else as missing. Stores do not check that the
// user itself exists; records are keyed by user id alone.
type StorageInterface interface {
	// Establishes a connection to the storage backend and prepares its schema.
	Connect(ctx context.Context) error
	// Disconnects from the storage backend.
	Disconnect(ctx context.Context) error

	// Finds a user by id.
	GetUser(ctx context.Context, userID string) (*models.User, error)
	// Inserts the user or merges the non-zero profile fields into an existing one.
	UpsertUser(ctx context.Context, user *models.User) (*models.User, error)
	// Applies a partial profile update.
	UpdateUser(ctx context.Context, userID string, update UserUpdate) (*models.User, error)
	// Atomically adds delta to the user's XP (floored at zero), recomputes the cached
	// level and, when activeAt is set, stamps lastActiveDate. Returns the user before and after.
	AdjustUserXP(ctx context.Context, userID string, delta int, activeAt *time.Time) (before, after *models.User, err error)

	// Adds a new task.
	AddTask(ctx context.Context, task *models.Task) (*models.Task, error)
	// Finds a task owned by userID.
	GetTask(ctx context.Context, taskID, userID string) (*models.Task, error)
	// Finds the tasks matching the filter, in no particular order.
	FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	// Counts the tasks matching the filter.
	CountTasks(ctx context.Context, filter TaskFilter) (int, error)
	// Returns the highest priority among the user's incomplete tasks in the bucket, 0 if none.
	MaxPriority(ctx context.Context, userID string, urgency models.Urgency) (int, error)
	// Applies a partial update to a task owned by userID.
	UpdateTask(ctx context.Context, taskID, userID string, update TaskUpdate) (*models.Task, error)
	// Moves a task to the requested completion state if it is not already there and
	// returns the task as it was before. Returns ErrUnchanged if nothing moved.
	SetTaskCompletion(ctx context.Context, taskID, userID string, completed bool, at time.Time) (*models.Task, error)
	// Deletes a task owned by userID.
	DeleteTask(ctx context.Context, taskID, userID string) error

	// Adds a new achievement.
	AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error)
	// Finds a user's achievements, newest first. A limit of 0 returns all of them.
	FindAchievements(ctx context.Context, userID string, limit int) ([]models.Achievement, error)

	// Finds the stat row of the day starting at day.
	GetDailyStat(ctx context.Context, userID string, day time.Time) (*models.DailyStat, error)
	// Atomically applies the delta to the day's row, creating it at zero first if missing.
	AdjustDailyStat(ctx context.Context, userID string, day time.Time, delta models.DailyStatDelta) (*models.DailyStat, error)
	// Finds the rows with from <= date < to, oldest first.
	FindDailyStats(ctx context.Context, userID string, from, to time.Time) ([]models.DailyStat, error)
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	SQLitePath string
	MongoURI   string
	DBName     string
}

// NewStorage creates the backend named in opts and connects it.
func NewStorage(ctx context.Context, opts Options) (StorageInterface, error) {
	var store StorageInterface
	switch opts.Backend {
	case "", BackendMemory:
		store = NewMemoryStorage()
	case BackendSQLite:
		store = NewSQLiteStorage(opts.SQLitePath)
	case BackendMongo:
		store = NewMongoStorage(opts.DBName, opts.MongoURI)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}

	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
