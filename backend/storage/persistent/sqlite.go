package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jghoshh/taskvibe/backend/models"
	_ "modernc.org/sqlite"
)

const dayLayout = "2006-01-02"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                   TEXT    PRIMARY KEY,
	email                TEXT    NOT NULL DEFAULT '',
	first_name           TEXT    NOT NULL DEFAULT '',
	last_name            TEXT    NOT NULL DEFAULT '',
	profile_image_url    TEXT    NOT NULL DEFAULT '',
	nickname             TEXT    NOT NULL DEFAULT '',
	theme                TEXT    NOT NULL DEFAULT 'system',
	level                INTEGER NOT NULL DEFAULT 1,
	xp                   INTEGER NOT NULL DEFAULT 0,
	streak               INTEGER NOT NULL DEFAULT 0,
	last_active_date     INTEGER,
	completed_onboarding INTEGER NOT NULL DEFAULT 0,
	created_at           INTEGER NOT NULL,
	updated_at           INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tasks (
	id           TEXT    PRIMARY KEY,
	user_id      TEXT    NOT NULL,
	title        TEXT    NOT NULL,
	description  TEXT    NOT NULL DEFAULT '',
	urgency      TEXT    NOT NULL,
	completed    INTEGER NOT NULL DEFAULT 0,
	completed_at INTEGER,
	priority     INTEGER NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_bucket ON tasks(user_id, urgency, completed);
CREATE TABLE IF NOT EXISTS achievements (
	id          TEXT    PRIMARY KEY,
	user_id     TEXT    NOT NULL,
	type        TEXT    NOT NULL,
	title       TEXT    NOT NULL,
	description TEXT    NOT NULL DEFAULT '',
	icon        TEXT    NOT NULL,
	unlocked_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_achievements_user ON achievements(user_id, unlocked_at);
CREATE TABLE IF NOT EXISTS daily_stats (
	id                  TEXT    PRIMARY KEY,
	user_id             TEXT    NOT NULL,
	date                TEXT    NOT NULL,
	tasks_completed     INTEGER NOT NULL DEFAULT 0,
	immediate_completed INTEGER NOT NULL DEFAULT 0,
	medium_completed    INTEGER NOT NULL DEFAULT 0,
	delayed_completed   INTEGER NOT NULL DEFAULT 0,
	xp_earned           INTEGER NOT NULL DEFAULT 0,
	UNIQUE(user_id, date)
);`

const (
	userColumns        = `id, email, first_name, last_name, profile_image_url, nickname, theme, level, xp, streak, last_active_date, completed_onboarding, created_at, updated_at`
	taskColumns        = `id, user_id, title, description, urgency, completed, completed_at, priority, created_at, updated_at`
	achievementColumns = `id, user_id, type, title, description, icon, unlocked_at`
	dailyStatColumns   = `id, user_id, date, tasks_completed, immediate_completed, medium_completed, delayed_completed, xp_earned`
)

// SQLiteStorage persists entities in a single SQLite file.
// The pool is capped at one connection so transactions never interleave.
type SQLiteStorage struct {
	path string
	db   *sql.DB
}

// NewSQLiteStorage creates a store for the database at path. Use Connect to open it.
func NewSQLiteStorage(path string) *SQLiteStorage {
	return &SQLiteStorage{path: path}
}

// DefaultSQLitePath returns the default database location under the XDG data dir.
func DefaultSQLitePath() (string, error) {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(dataHome, "taskvibe")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskvibe.db"), nil
}

// Connect opens the database file, enables WAL and creates the schema.
func (s *SQLiteStorage) Connect(ctx context.Context) error {
	if s.path == "" {
		path, err := DefaultSQLitePath()
		if err != nil {
			return fmt.Errorf("determine db path: %w", err)
		}
		s.path = path
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return fmt.Errorf("create schema: %w", err)
	}

	s.db = db
	return nil
}

// Disconnect closes the database.
func (s *SQLiteStorage) Disconnect(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n)
}

func nullableUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullableUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromUnix(n.Int64)
	return &t
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var theme string
	var lastActive sql.NullInt64
	var onboarded bool
	var createdAt, updatedAt int64
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.ProfileImageURL, &u.Nickname,
		&theme, &u.Level, &u.XP, &u.Streak, &lastActive, &onboarded, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Theme = models.Theme(theme)
	u.LastActiveDate = fromNullableUnix(lastActive)
	u.CompletedOnboarding = onboarded
	u.CreatedAt = fromUnix(createdAt)
	u.UpdatedAt = fromUnix(updatedAt)
	return &u, nil
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var urgency string
	var completedAt sql.NullInt64
	var createdAt, updatedAt int64
	err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Description, &urgency, &t.Completed,
		&completedAt, &t.Priority, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.Urgency = models.Urgency(urgency)
	t.CompletedAt = fromNullableUnix(completedAt)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return &t, nil
}

func scanDailyStat(row rowScanner, loc *time.Location) (*models.DailyStat, error) {
	var d models.DailyStat
	var date string
	err := row.Scan(&d.ID, &d.UserID, &date, &d.TasksCompleted, &d.ImmediateCompleted,
		&d.MediumCompleted, &d.DelayedCompleted, &d.XPEarned)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan daily stat: %w", err)
	}
	day, err := time.ParseInLocation(dayLayout, date, loc)
	if err != nil {
		return nil, fmt.Errorf("parse daily stat date %q: %w", date, err)
	}
	d.Date = day
	return &d, nil
}

func getUser(ctx context.Context, q queryer, userID string) (*models.User, error) {
	return scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID))
}

func getTask(ctx context.Context, q queryer, taskID, userID string) (*models.Task, error) {
	return scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID))
}

func writeUser(ctx context.Context, tx *sql.Tx, u *models.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			profile_image_url = excluded.profile_image_url,
			nickname = excluded.nickname,
			theme = excluded.theme,
			level = excluded.level,
			xp = excluded.xp,
			streak = excluded.streak,
			last_active_date = excluded.last_active_date,
			completed_onboarding = excluded.completed_onboarding,
			updated_at = excluded.updated_at
	`, u.ID, u.Email, u.FirstName, u.LastName, u.ProfileImageURL, u.Nickname, string(u.Theme),
		u.Level, u.XP, u.Streak, nullableUnix(u.LastActiveDate), u.CompletedOnboarding,
		toUnix(u.CreatedAt), toUnix(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("user write: %w", err)
	}
	return nil
}

// GetUser finds a user by id.
func (s *SQLiteStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return getUser(ctx, s.db, userID)
}

// UpsertUser inserts the user or merges its profile fields in one transaction.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := user.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}

	var out models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := getUser(ctx, tx, user.ID)
		switch {
		case errors.Is(err, ErrNotFound):
			out = newUserRecord(user, now)
		case err != nil:
			return err
		default:
			out = *existing
			mergeUserProfile(&out, user)
			out.UpdatedAt = now
		}
		return writeUser(ctx, tx, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUser applies a partial profile update.
func (s *SQLiteStorage) UpdateUser(ctx context.Context, userID string, update UserUpdate) (*models.User, error) {
	var out *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		applyUserUpdate(u, update)
		out = u
		return writeUser(ctx, tx, u)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AdjustUserXP adds delta in a transaction and returns the user before and after.
func (s *SQLiteStorage) AdjustUserXP(ctx context.Context, userID string, delta int, activeAt *time.Time) (*models.User, *models.User, error) {
	var before, after *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		u, err := getUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		prev := *u
		applyXP(u, delta, activeAt)
		before, after = &prev, u
		_, err = tx.ExecContext(ctx,
			`UPDATE users SET xp = ?, level = ?, last_active_date = ?, updated_at = ? WHERE id = ?`,
			u.XP, u.Level, nullableUnix(u.LastActiveDate), toUnix(u.UpdatedAt), userID)
		if err != nil {
			return fmt.Errorf("user xp update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return before, after, nil
}

// AddTask inserts a task, assigning an id when it has none.
func (s *SQLiteStorage) AddTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	t := *task
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Title, t.Description, string(t.Urgency), t.Completed,
		nullableUnix(t.CompletedAt), t.Priority, toUnix(t.CreatedAt), toUnix(t.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("task insert: %w", err)
	}
	return &t, nil
}

// GetTask finds one of the user's tasks.
func (s *SQLiteStorage) GetTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	return getTask(ctx, s.db, taskID, userID)
}

func (f TaskFilter) where() (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.Completed != nil {
		clauses = append(clauses, "completed = ?")
		args = append(args, *f.Completed)
	}
	if f.Urgency != nil {
		clauses = append(clauses, "urgency = ?")
		args = append(args, string(*f.Urgency))
	}
	if f.CompletedSince != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, toUnix(*f.CompletedSince))
	}
	return strings.Join(clauses, " AND "), args
}

// FindTasks returns the tasks matching filter.
func (s *SQLiteStorage) FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	where, args := filter.where()
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("task list: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CountTasks counts the tasks matching filter.
func (s *SQLiteStorage) CountTasks(ctx context.Context, filter TaskFilter) (int, error) {
	where, args := filter.where()
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("task count: %w", err)
	}
	return n, nil
}

// MaxPriority returns the highest priority among the user's active tasks in the bucket, or 0.
func (s *SQLiteStorage) MaxPriority(ctx context.Context, userID string, urgency models.Urgency) (int, error) {
	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(priority), 0) FROM tasks WHERE user_id = ? AND urgency = ? AND completed = 0`,
		userID, string(urgency)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("task max priority: %w", err)
	}
	return max, nil
}

// UpdateTask applies a partial task edit in a transaction.
func (s *SQLiteStorage) UpdateTask(ctx context.Context, taskID, userID string, update TaskUpdate) (*models.Task, error) {
	var out *models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if err := checkTaskUpdate(t, update); err != nil {
			return err
		}
		applyTaskUpdate(t, update)
		out = t
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET title = ?, description = ?, urgency = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			t.Title, t.Description, string(t.Urgency), toUnix(t.UpdatedAt), taskID, userID)
		if err != nil {
			return fmt.Errorf("task update: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetTaskCompletion flips the completion state in a transaction and returns the task as it was.
func (s *SQLiteStorage) SetTaskCompletion(ctx context.Context, taskID, userID string, completed bool, at time.Time) (*models.Task, error) {
	var before *models.Task
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		t, err := getTask(ctx, tx, taskID, userID)
		if err != nil {
			return err
		}
		if t.Completed == completed {
			return ErrUnchanged
		}
		prev := *t
		applyCompletion(t, completed, at)
		before = &prev
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET completed = ?, completed_at = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
			t.Completed, nullableUnix(t.CompletedAt), toUnix(t.UpdatedAt), taskID, userID)
		if err != nil {
			return fmt.Errorf("task completion: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

// DeleteTask removes one of the user's tasks.
func (s *SQLiteStorage) DeleteTask(ctx context.Context, taskID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ? AND user_id = ?`, taskID, userID)
	if err != nil {
		return fmt.Errorf("task delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("task delete: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAchievement inserts an achievement.
func (s *SQLiteStorage) AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error) {
	a := *achievement
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO achievements (`+achievementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Type, a.Title, a.Description, a.Icon, toUnix(a.UnlockedAt))
	if err != nil {
		return nil, fmt.Errorf("achievement insert: %w", err)
	}
	return &a, nil
}

// FindAchievements returns the user's achievements newest first, at most limit when limit > 0.
func (s *SQLiteStorage) FindAchievements(ctx context.Context, userID string, limit int) ([]models.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE user_id = ? ORDER BY unlocked_at DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("achievement list: %w", err)
	}
	defer rows.Close()

	found := []models.Achievement{}
	for rows.Next() {
		var a models.Achievement
		var unlockedAt int64
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Title, &a.Description, &a.Icon, &unlockedAt); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		a.UnlockedAt = fromUnix(unlockedAt)
		found = append(found, a)
	}
	return found, rows.Err()
}

// GetDailyStat returns the user's row for day.
func (s *SQLiteStorage) GetDailyStat(ctx context.Context, userID string, day time.Time) (*models.DailyStat, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+dailyStatColumns+` FROM daily_stats WHERE user_id = ? AND date = ?`,
		userID, day.Format(dayLayout))
	return scanDailyStat(row, day.Location())
}

func floorZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// AdjustDailyStat upserts the day's row and adds delta with every counter floored at zero.
func (s *SQLiteStorage) AdjustDailyStat(ctx context.Context, userID string, day time.Time, delta models.DailyStatDelta) (*models.DailyStat, error) {
	date := day.Format(dayLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_stats (`+dailyStatColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			tasks_completed     = MAX(0, tasks_completed + ?),
			immediate_completed = MAX(0, immediate_completed + ?),
			medium_completed    = MAX(0, medium_completed + ?),
			delayed_completed   = MAX(0, delayed_completed + ?),
			xp_earned           = MAX(0, xp_earned + ?)
	`, uuid.NewString(), userID, date,
		floorZero(delta.TasksCompleted), floorZero(delta.ImmediateCompleted), floorZero(delta.MediumCompleted),
		floorZero(delta.DelayedCompleted), floorZero(delta.XPEarned),
		delta.TasksCompleted, delta.ImmediateCompleted, delta.MediumCompleted, delta.DelayedCompleted, delta.XPEarned)
	if err != nil {
		return nil, fmt.Errorf("daily stat upsert: %w", err)
	}
	return s.GetDailyStat(ctx, userID, day)
}

// FindDailyStats returns the rows with from <= date < to, oldest first.
func (s *SQLiteStorage) FindDailyStats(ctx context.Context, userID string, from, to time.Time) ([]models.DailyStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+dailyStatColumns+` FROM daily_stats WHERE user_id = ? AND date >= ? AND date < ? ORDER BY date ASC`,
		userID, from.Format(dayLayout), to.Format(dayLayout))
	if err != nil {
		return nil, fmt.Errorf("daily stat list: %w", err)
	}
	defer rows.Close()

	found := []models.DailyStat{}
	for rows.Next() {
		d, err := scanDailyStat(rows, from.Location())
		if err != nil {
			return nil, err
		}
		found = append(found, *d)
	}
	return found, rows.Err()
}
