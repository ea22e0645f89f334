package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test variables
var (
	testUserID  = "user-1"
	otherUserID = "user-2"
	testStart   = time.Date(2024, 5, 20, 9, 30, 0, 0, time.UTC)
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Emit(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingSink) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

type fixture struct {
	svc   *Service
	store storage.StorageInterface
	clock *fakeClock
	sink  *recordingSink
}

// backends are the stores the engine tests that touch storage rules run against.
var backends = map[string]func(t *testing.T) storage.StorageInterface{
	storage.BackendMemory: func(t *testing.T) storage.StorageInterface {
		return storage.NewMemoryStorage()
	},
	storage.BackendSQLite: func(t *testing.T) storage.StorageInterface {
		store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "engine.db"))
		require.NoError(t, store.Connect(context.Background()))
		t.Cleanup(func() { store.Disconnect(context.Background()) })
		return store
	},
}

// forEachBackend runs fn as a subtest with a fresh fixture per backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, f *fixture)) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, newFixtureOn(t, newStore(t)))
		})
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, storage.NewMemoryStorage())
}

func newFixtureOn(t *testing.T, store storage.StorageInterface) *fixture {
	t.Helper()
	clock := &fakeClock{t: testStart}
	sink := &recordingSink{}
	svc := NewService(store, Options{Now: clock.Now, Location: time.UTC, Events: sink})

	for _, id := range []string{testUserID, otherUserID} {
		_, err := svc.EnsureUser(context.Background(), models.User{ID: id})
		require.NoError(t, err)
	}
	return &fixture{svc: svc, store: store, clock: clock, sink: sink}
}

func (f *fixture) task(t *testing.T, userID string, urgency models.Urgency) *models.Task {
	t.Helper()
	task, err := f.svc.CreateTask(context.Background(), userID, CreateTaskInput{Title: "Task", Urgency: urgency})
	require.NoError(t, err)
	return task
}

func (f *fixture) user(t *testing.T) *models.User {
	t.Helper()
	u, err := f.svc.GetUser(context.Background(), testUserID)
	require.NoError(t, err)
	return u
}

func (f *fixture) stat(t *testing.T, day time.Time) *models.DailyStat {
	t.Helper()
	s, err := f.store.GetDailyStat(context.Background(), testUserID, models.DayStart(day))
	require.NoError(t, err)
	return s
}

func TestXPForUrgency(t *testing.T) {
	assert.Equal(t, 15, XPForUrgency(models.UrgencyImmediate))
	assert.Equal(t, 10, XPForUrgency(models.UrgencyMedium))
	assert.Equal(t, 5, XPForUrgency(models.UrgencyDelayed))
	assert.Equal(t, 5, XPForUrgency(models.Urgency("someday")))
}

func TestCreateTaskValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		in    CreateTaskInput
		field string
	}{
		{CreateTaskInput{Title: "", Urgency: models.UrgencyMedium}, "title"},
		{CreateTaskInput{Title: "   ", Urgency: models.UrgencyMedium}, "title"},
		{CreateTaskInput{Title: "Write report", Urgency: "urgent"}, "urgency"},
	}
	for _, tc := range cases {
		_, err := f.svc.CreateTask(ctx, testUserID, tc.in)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "input %+v", tc.in)
		assert.Equal(t, tc.field, verr.Field)
	}

	_, err := f.svc.CreateTask(ctx, "", CreateTaskInput{Title: "x", Urgency: models.UrgencyMedium})
	assert.ErrorIs(t, err, ErrUnauthorized)

	task, err := f.svc.CreateTask(ctx, testUserID, CreateTaskInput{Title: "  Write report ", Urgency: models.UrgencyMedium})
	require.NoError(t, err)
	assert.Equal(t, "Write report", task.Title)
	assert.False(t, task.Completed)
	assert.Nil(t, task.CompletedAt)
}

func TestPriorityIsAssignedPerBucket(t *testing.T) {
	f := newFixture(t)

	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, f.task(t, testUserID, models.UrgencyMedium).Priority)
	}
	assert.Equal(t, 1, f.task(t, testUserID, models.UrgencyImmediate).Priority)
	assert.Equal(t, 1, f.task(t, otherUserID, models.UrgencyMedium).Priority)
}

func TestPriorityGapsAreKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.task(t, testUserID, models.UrgencyDelayed)
	second := f.task(t, testUserID, models.UrgencyDelayed)
	require.NoError(t, f.svc.DeleteTask(ctx, testUserID, first.ID))

	third := f.task(t, testUserID, models.UrgencyDelayed)
	assert.Equal(t, second.Priority+1, third.Priority)
}

func TestListTasksOrder(t *testing.T) {
	forEachBackend(t, testListTasksOrder)
}

func testListTasksOrder(t *testing.T, f *fixture) {
	ctx := context.Background()

	d1 := f.task(t, testUserID, models.UrgencyDelayed)
	m1 := f.task(t, testUserID, models.UrgencyMedium)
	i1 := f.task(t, testUserID, models.UrgencyImmediate)
	m2 := f.task(t, testUserID, models.UrgencyMedium)
	i2 := f.task(t, testUserID, models.UrgencyImmediate)

	tasks, err := f.svc.ListTasks(ctx, testUserID, false)
	require.NoError(t, err)
	got := []string{}
	for _, task := range tasks {
		got = append(got, task.ID)
	}
	assert.Equal(t, []string{i1.ID, i2.ID, m1.ID, m2.ID, d1.ID}, got)
}

func TestSortTasksTiebreakNewestFirst(t *testing.T) {
	older := models.Task{ID: "older", Urgency: models.UrgencyMedium, Priority: 1, CreatedAt: testStart}
	newer := models.Task{ID: "newer", Urgency: models.UrgencyMedium, Priority: 1, CreatedAt: testStart.Add(time.Minute)}
	tasks := []models.Task{older, newer}
	SortTasks(tasks)
	assert.Equal(t, "newer", tasks[0].ID)
}

func TestCompleteScenario(t *testing.T) {
	forEachBackend(t, testCompleteScenario)
}

func testCompleteScenario(t *testing.T, f *fixture) {
	ctx := context.Background()

	tasks := make([]*models.Task, 7)
	for i := range tasks {
		tasks[i] = f.task(t, testUserID, models.UrgencyImmediate)
	}

	res, err := f.svc.CompleteTask(ctx, testUserID, tasks[0].ID)
	require.NoError(t, err)
	assert.True(t, res.Task.Completed)
	require.NotNil(t, res.Task.CompletedAt)
	assert.True(t, res.Task.CompletedAt.Equal(testStart))
	assert.Equal(t, 15, res.XPDelta)
	assert.False(t, res.LevelUp)

	u := f.user(t)
	assert.Equal(t, 15, u.XP)
	assert.Equal(t, 1, u.Level)
	require.NotNil(t, u.LastActiveDate)
	s := f.stat(t, testStart)
	assert.Equal(t, 1, s.TasksCompleted)
	assert.Equal(t, 1, s.ImmediateCompleted)
	assert.Equal(t, 15, s.XPEarned)

	levelUps := 0
	for _, task := range tasks[1:] {
		res, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
		require.NoError(t, err)
		if res.LevelUp {
			levelUps++
			require.NotNil(t, res.Achievement)
			assert.Equal(t, "Level Up!", res.Achievement.Title)
			assert.Equal(t, "Reached Level 2", res.Achievement.Description)
			assert.Equal(t, 1, res.LevelBefore)
			assert.Equal(t, 2, res.LevelAfter)
		}
	}
	assert.Equal(t, 1, levelUps)

	u = f.user(t)
	assert.Equal(t, 105, u.XP)
	assert.Equal(t, 2, u.Level)

	s = f.stat(t, testStart)
	assert.Equal(t, 7, s.TasksCompleted)
	assert.Equal(t, 7, s.ImmediateCompleted)
	assert.Equal(t, 105, s.XPEarned)

	achievements, err := f.svc.ListAchievements(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, models.AchievementLevel, achievements[0].Type)
}

func TestCompleteThenUncompleteRestoresState(t *testing.T) {
	for name, newStore := range backends {
		for _, urgency := range models.Urgencies {
			t.Run(name+"/"+string(urgency), func(t *testing.T) {
				f := newFixtureOn(t, newStore(t))
				ctx := context.Background()

				// Seed some prior progress so the round trip starts from a non-zero state.
				seed := f.task(t, testUserID, models.UrgencyMedium)
				_, err := f.svc.CompleteTask(ctx, testUserID, seed.ID)
				require.NoError(t, err)
				userBefore := f.user(t)
				statBefore := f.stat(t, testStart)

				task := f.task(t, testUserID, urgency)
				res, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
				require.NoError(t, err)
				assert.Equal(t, XPForUrgency(urgency), res.XPDelta)

				res, err = f.svc.UncompleteTask(ctx, testUserID, task.ID)
				require.NoError(t, err)
				assert.Equal(t, -XPForUrgency(urgency), res.XPDelta)
				assert.False(t, res.Task.Completed)
				assert.Nil(t, res.Task.CompletedAt)

				userAfter := f.user(t)
				assert.Equal(t, userBefore.XP, userAfter.XP)
				assert.Equal(t, userBefore.Level, userAfter.Level)
				assert.Equal(t, *statBefore, *f.stat(t, testStart))
			})
		}
	}
}

func TestUncompleteFloorsAtZeroAndKeepsAchievements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Push the user over a level boundary, then reset XP below the uncompletion amount.
	for i := 0; i < 7; i++ {
		task := f.task(t, testUserID, models.UrgencyImmediate)
		_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
		require.NoError(t, err)
	}
	_, _, err := f.store.AdjustUserXP(ctx, testUserID, -100, nil)
	require.NoError(t, err)

	done, err := f.svc.ListTasks(ctx, testUserID, true)
	require.NoError(t, err)
	res, err := f.svc.UncompleteTask(ctx, testUserID, done[0].ID)
	require.NoError(t, err)
	assert.Equal(t, -5, res.XPDelta)

	u := f.user(t)
	assert.Equal(t, 0, u.XP)
	assert.Equal(t, 1, u.Level)

	achievements, err := f.svc.ListAchievements(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, achievements, 1)
}

func TestRepeatedTransitionsAreNoops(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyMedium)

	res, err := f.svc.UncompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.XPDelta)
	assert.False(t, res.Task.Completed)

	_, err = f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	res, err = f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.XPDelta)
	assert.True(t, res.Task.Completed)

	assert.Equal(t, 10, f.user(t).XP)
	assert.Equal(t, 1, f.stat(t, testStart).TasksCompleted)
}

func TestUncompleteReversesTheCompletionDay(t *testing.T) {
	forEachBackend(t, testUncompleteReversesTheCompletionDay)
}

func testUncompleteReversesTheCompletionDay(t *testing.T, f *fixture) {
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyImmediate)

	_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.UncompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)

	s := f.stat(t, testStart)
	assert.Equal(t, 0, s.TasksCompleted)
	assert.Equal(t, 0, s.XPEarned)

	_, err = f.store.GetDailyStat(ctx, testUserID, models.DayStart(f.clock.Now()))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// assertNothingBooked checks that the user and the day's row are back to zero with
// the per-urgency counters still adding up.
func assertNothingBooked(t *testing.T, f *fixture) {
	t.Helper()
	assert.Equal(t, 0, f.user(t).XP)
	s := f.stat(t, testStart)
	assert.Equal(t, s.TasksCompleted, s.ImmediateCompleted+s.MediumCompleted+s.DelayedCompleted)
	assert.Equal(t, 0, s.TasksCompleted)
	assert.Equal(t, 0, s.XPEarned)
}

func TestCompletedTaskKeepsItsUrgency(t *testing.T) {
	forEachBackend(t, testCompletedTaskKeepsItsUrgency)
}

func testCompletedTaskKeepsItsUrgency(t *testing.T, f *fixture) {
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyImmediate)
	_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)

	medium := models.UrgencyMedium
	_, err = f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Urgency: &medium})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "urgency", verr.Field)

	title := "Still editable"
	updated, err := f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyImmediate, updated.Urgency)

	res, err := f.svc.UncompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, -15, res.XPDelta)
	assertNothingBooked(t, f)

	// Active again, so the urgency can move.
	updated, err = f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Urgency: &medium})
	require.NoError(t, err)
	assert.Equal(t, models.UrgencyMedium, updated.Urgency)
}

func TestUpdateTaskOrdersUrgencyAroundCompletion(t *testing.T) {
	forEachBackend(t, testUpdateTaskOrdersUrgencyAroundCompletion)
}

func testUpdateTaskOrdersUrgencyAroundCompletion(t *testing.T, f *fixture) {
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyImmediate)

	// Completing with a new urgency books the new bucket.
	done, medium := true, models.UrgencyMedium
	updated, err := f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Completed: &done, Urgency: &medium})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, models.UrgencyMedium, updated.Urgency)
	assert.Equal(t, 10, f.user(t).XP)
	s := f.stat(t, testStart)
	assert.Equal(t, 1, s.MediumCompleted)
	assert.Equal(t, 0, s.ImmediateCompleted)

	// Un-completing with a new urgency takes back the booked bucket first.
	active, delayed := false, models.UrgencyDelayed
	updated, err = f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Completed: &active, Urgency: &delayed})
	require.NoError(t, err)
	assert.False(t, updated.Completed)
	assert.Equal(t, models.UrgencyDelayed, updated.Urgency)
	assertNothingBooked(t, f)
}

func TestUnknownUserCannotBookProgress(t *testing.T) {
	forEachBackend(t, testUnknownUserCannotBookProgress)
}

func testUnknownUserCannotBookProgress(t *testing.T, f *fixture) {
	ctx := context.Background()
	const nobody = "nobody"

	_, err := f.svc.CreateTask(ctx, nobody, CreateTaskInput{Title: "Task", Urgency: models.UrgencyMedium})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.UnlockAchievement(ctx, nobody, WelcomeAchievement())
	assert.ErrorIs(t, err, ErrNotFound)

	task := f.task(t, testUserID, models.UrgencyMedium)
	_, err = f.svc.CompleteTask(ctx, nobody, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	tasks, err := f.store.FindTasks(ctx, storage.TaskFilter{UserID: nobody})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUncompleteWithoutStatRowCreatesNone(t *testing.T) {
	forEachBackend(t, testUncompleteWithoutStatRowCreatesNone)
}

func testUncompleteWithoutStatRowCreatesNone(t *testing.T, f *fixture) {
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyImmediate)
	// Completed without going through the engine, so no row was booked for the day.
	_, err := f.store.SetTaskCompletion(ctx, task.ID, testUserID, true, testStart)
	require.NoError(t, err)

	res, err := f.svc.UncompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	assert.False(t, res.Task.Completed)

	_, err = f.store.GetDailyStat(ctx, testUserID, models.DayStart(testStart))
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, 0, f.user(t).XP)
}

func TestOtherUsersTasksAreNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyMedium)

	assert.ErrorIs(t, f.svc.DeleteTask(ctx, otherUserID, task.ID), ErrNotFound)
	_, err := f.svc.CompleteTask(ctx, otherUserID, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.UncompleteTask(ctx, otherUserID, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	title := "mine now"
	_, err = f.svc.UpdateTask(ctx, otherUserID, task.ID, TaskPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.GetTask(ctx, testUserID, task.ID)
	assert.NoError(t, err)
}

func TestUpdateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyMedium)
	f.clock.Advance(time.Minute)

	title, desc, urgency := "Renamed", "details", models.UrgencyImmediate
	updated, err := f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Title: &title, Description: &desc, Urgency: &urgency})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "details", updated.Description)
	assert.Equal(t, models.UrgencyImmediate, updated.Urgency)
	assert.Equal(t, task.Priority, updated.Priority)
	assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))

	blank := " "
	_, err = f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Title: &blank})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	// A completion flag in an edit books XP like a completion does.
	done := true
	updated, err = f.svc.UpdateTask(ctx, testUserID, task.ID, TaskPatch{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, 15, f.user(t).XP)
}

func TestGetUserStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	y := f.task(t, testUserID, models.UrgencyDelayed)
	_, err := f.svc.CompleteTask(ctx, testUserID, y.ID)
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	a := f.task(t, testUserID, models.UrgencyImmediate)
	f.task(t, testUserID, models.UrgencyImmediate)
	f.task(t, testUserID, models.UrgencyMedium)
	f.task(t, otherUserID, models.UrgencyMedium)
	_, err = f.svc.CompleteTask(ctx, testUserID, a.ID)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		f.clock.Advance(time.Second)
		_, err := f.svc.UnlockAchievement(ctx, testUserID, AchievementInput{Type: "custom", Title: fmt.Sprintf("A%d", i)})
		require.NoError(t, err)
	}

	stats, err := f.svc.GetUserStats(ctx, testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalCompleted)
	assert.Equal(t, 1, stats.TodayCompleted)
	assert.Equal(t, 1, stats.ImmediateCount)
	assert.Equal(t, 1, stats.MediumCount)
	assert.Equal(t, 0, stats.DelayedCount)
	require.Len(t, stats.RecentAchievements, 3)
	assert.Equal(t, "A3", stats.RecentAchievements[0].Title)
	assert.Equal(t, "A1", stats.RecentAchievements[2].Title)
}

func TestGetDailyStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for day := 0; day < 3; day++ {
		task := f.task(t, testUserID, models.UrgencyMedium)
		_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
		require.NoError(t, err)
		f.clock.Advance(24 * time.Hour)
	}

	rows, err := f.svc.GetDailyStats(ctx, testUserID, 2)
	require.NoError(t, err)
	// Today has no completions yet, so only yesterday falls in the window.
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Date.Equal(models.DayStart(testStart.AddDate(0, 0, 2))))

	rows, err = f.svc.GetDailyStats(ctx, testUserID, 7)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = f.svc.GetDailyStats(ctx, testUserID, 0)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestOnboardingUnlocksWelcomeOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.svc.CompleteOnboarding(ctx, testUserID, OnboardingInput{Nickname: "Ace", Theme: models.ThemeDark})
	require.NoError(t, err)
	assert.True(t, user.CompletedOnboarding)
	assert.Equal(t, "Ace", user.Nickname)
	assert.Equal(t, models.ThemeDark, user.Theme)

	_, err = f.svc.CompleteOnboarding(ctx, testUserID, OnboardingInput{})
	require.NoError(t, err)

	achievements, err := f.svc.ListAchievements(ctx, testUserID)
	require.NoError(t, err)
	require.Len(t, achievements, 1)
	assert.Equal(t, "Welcome Aboard!", achievements[0].Title)
	assert.Equal(t, "Started your TaskVibe journey", achievements[0].Description)

	_, err = f.svc.CompleteOnboarding(ctx, testUserID, OnboardingInput{Theme: "neon"})
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := f.task(t, testUserID, models.UrgencyImmediate)
	_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)

	// Logging in again must not reset progress.
	u, err := f.svc.EnsureUser(ctx, models.User{ID: testUserID, FirstName: "Someone"})
	require.NoError(t, err)
	assert.Equal(t, 15, u.XP)

	_, err = f.svc.UpsertUser(ctx, testUserID, UserFields{Email: "not-an-email"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Field)

	u, err = f.svc.UpsertUser(ctx, testUserID, UserFields{Email: "ace@example.com", FirstName: "Ace"})
	require.NoError(t, err)
	assert.Equal(t, "ace@example.com", u.Email)
	assert.Equal(t, 15, u.XP)

	u, err = f.svc.UpdateUserTheme(ctx, testUserID, models.ThemeLight)
	require.NoError(t, err)
	assert.Equal(t, models.ThemeLight, u.Theme)

	_, err = f.svc.UpdateUserTheme(ctx, testUserID, "neon")
	assert.True(t, errors.As(err, &verr))
}

func TestEventsAreEmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.task(t, testUserID, models.UrgencyImmediate)

	_, err := f.svc.CompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	_, err = f.svc.UncompleteTask(ctx, testUserID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{EventTaskCompleted, EventTaskRestored}, f.sink.kinds())

	// A broken sink never fails the operation.
	f.sink.err = errors.New("queue down")
	_, err = f.svc.CompleteTask(ctx, testUserID, task.ID)
	assert.NoError(t, err)
}

func TestConcurrentCompletionsKeepEveryPoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	tasks := make([]*models.Task, n)
	for i := range tasks {
		tasks[i] = f.task(t, testUserID, models.UrgencyImmediate)
	}

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.CompleteTask(ctx, testUserID, id)
			assert.NoError(t, err)
		}(task.ID)
	}
	// The same task raced from several requests counts once.
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CompleteTask(ctx, testUserID, tasks[0].ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	u := f.user(t)
	assert.Equal(t, n*15, u.XP)
	assert.Equal(t, models.LevelForXP(n*15), u.Level)
	assert.Equal(t, n, f.stat(t, testStart).TasksCompleted)

	achievements, err := f.svc.ListAchievements(ctx, testUserID)
	require.NoError(t, err)
	assert.Len(t, achievements, u.Level-1)
}
