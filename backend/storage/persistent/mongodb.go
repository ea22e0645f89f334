package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jghoshh/taskvibe/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection        = "users"
	tasksCollection        = "tasks"
	achievementsCollection = "achievements"
	dailyStatsCollection   = "dailyStats"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the users, tasks,
// achievements and dailyStats collections. Counter adjustments are single
// pipeline updates so concurrent requests never lose an increment.
type MongoStorage struct {
	client *mongo.Client
	dbName string
	uri    string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage(dbName, uri string) *MongoStorage {
	return &MongoStorage{dbName: dbName, uri: uri}
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// Connect establishes a connection to the MongoDB server and sets up the indexes
// every query path relies on.
func (m *MongoStorage) Connect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging MongoDB: %v", err)
	}
	m.client = client

	indexes := map[string][]mongo.IndexModel{
		tasksCollection: {
			// Serves list-by-bucket, max priority and the pending counters.
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "urgency", Value: 1}, {Key: "completed", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "completed_at", Value: 1}}},
		},
		achievementsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "unlocked_at", Value: -1}}},
		},
		dailyStatsCollection: {
			// One row per user and day.
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for name, idx := range indexes {
		if _, err := m.collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("error creating %s indexes: %v", name, err)
		}
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
func (m *MongoStorage) Disconnect(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// floorAddExpr is the aggregation expression max(0, $field + delta).
func floorAddExpr(field string, delta int) bson.D {
	return bson.D{{Key: "$max", Value: bson.A{0, bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$" + field, 0}}}, delta}}}}}}
}

// GetUser finds the document with the given id in the 'users' collection.
// Returns ErrNotFound if there is none.
func (m *MongoStorage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	if err := m.collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(user); err != nil {
		return nil, notFound(err)
	}
	return user, nil
}

// UpsertUser inserts a new user or merges the non-zero profile fields into the stored one.
// XP and level of an existing user are never touched here.
func (m *MongoStorage) UpsertUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := user.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}

	existing, err := m.GetUser(ctx, user.ID)
	if errors.Is(err, ErrNotFound) {
		u := newUserRecord(user, now)
		if _, err := m.collection(usersCollection).InsertOne(ctx, u); err != nil {
			if !mongo.IsDuplicateKeyError(err) {
				return nil, err
			}
			// Lost an insert race; fall through to a merge.
			if existing, err = m.GetUser(ctx, user.ID); err != nil {
				return nil, err
			}
		} else {
			return &u, nil
		}
	} else if err != nil {
		return nil, err
	}

	merged := *existing
	mergeUserProfile(&merged, user)
	set := bson.M{
		"email":             merged.Email,
		"first_name":        merged.FirstName,
		"last_name":         merged.LastName,
		"profile_image_url": merged.ProfileImageURL,
		"nickname":          merged.Nickname,
		"theme":             merged.Theme,
		"updated_at":        now,
	}
	return m.findAndSetUser(ctx, user.ID, set)
}

func (m *MongoStorage) findAndSetUser(ctx context.Context, userID string, set bson.M) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	updated := &models.User{}
	err := m.collection(usersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts).Decode(updated)
	if err != nil {
		return nil, notFound(err)
	}
	return updated, nil
}

// UpdateUser applies the non-nil fields of update to the user document.
func (m *MongoStorage) UpdateUser(ctx context.Context, userID string, update UserUpdate) (*models.User, error) {
	set := bson.M{"updated_at": updatedAt(update.UpdatedAt)}
	if update.Email != nil {
		set["email"] = *update.Email
	}
	if update.FirstName != nil {
		set["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		set["last_name"] = *update.LastName
	}
	if update.ProfileImageURL != nil {
		set["profile_image_url"] = *update.ProfileImageURL
	}
	if update.Nickname != nil {
		set["nickname"] = *update.Nickname
	}
	if update.Theme != nil {
		set["theme"] = *update.Theme
	}
	if update.Streak != nil {
		set["streak"] = *update.Streak
	}
	if update.CompletedOnboarding != nil {
		set["completed_onboarding"] = *update.CompletedOnboarding
	}
	return m.findAndSetUser(ctx, userID, set)
}

// AdjustUserXP adds delta to the user's XP and recomputes the cached level in one
// pipeline update. The document before the update is returned alongside the
// state it was moved to.
func (m *MongoStorage) AdjustUserXP(ctx context.Context, userID string, delta int, activeAt *time.Time) (*models.User, *models.User, error) {
	newXP := floorAddExpr("xp", delta)
	set := bson.D{
		{Key: "xp", Value: newXP},
		{Key: "level", Value: bson.D{{Key: "$add", Value: bson.A{
			bson.D{{Key: "$toInt", Value: bson.D{{Key: "$floor", Value: bson.D{{Key: "$divide", Value: bson.A{newXP, models.XPPerLevel}}}}}}},
			1,
		}}}},
	}
	if activeAt != nil {
		set = append(set,
			bson.E{Key: "last_active_date", Value: *activeAt},
			bson.E{Key: "updated_at", Value: *activeAt},
		)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	before := &models.User{}
	err := m.collection(usersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, mongo.Pipeline{{{Key: "$set", Value: set}}}, opts).Decode(before)
	if err != nil {
		return nil, nil, notFound(err)
	}

	after := *before
	applyXP(&after, delta, activeAt)
	return before, &after, nil
}

// AddTask inserts a task document into the 'tasks' collection, assigning an id when it has none.
// Returns the stored task and an error if the insert fails.
func (m *MongoStorage) AddTask(ctx context.Context, task *models.Task) (*models.Task, error) {
	t := *task
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if _, err := m.collection(tasksCollection).InsertOne(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTask finds the task document with the given id owned by userID.
// Returns ErrNotFound for a missing task and for a task owned by someone else.
func (m *MongoStorage) GetTask(ctx context.Context, taskID, userID string) (*models.Task, error) {
	task := &models.Task{}
	err := m.collection(tasksCollection).FindOne(ctx, bson.M{"_id": taskID, "user_id": userID}).Decode(task)
	if err != nil {
		return nil, notFound(err)
	}
	return task, nil
}

func (f TaskFilter) mongoFilter() bson.M {
	filter := bson.M{"user_id": f.UserID}
	if f.Completed != nil {
		filter["completed"] = *f.Completed
	}
	if f.Urgency != nil {
		filter["urgency"] = *f.Urgency
	}
	if f.CompletedSince != nil {
		filter["completed_at"] = bson.M{"$gte": *f.CompletedSince}
	}
	return filter
}

// FindTasks returns the task documents matching filter.
// Returns an error if the find or the decoding fails.
func (m *MongoStorage) FindTasks(ctx context.Context, filter TaskFilter) ([]models.Task, error) {
	cursor, err := m.collection(tasksCollection).Find(ctx, filter.mongoFilter())
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := []models.Task{}
	for cursor.Next(ctx) {
		var task models.Task
		if err := cursor.Decode(&task); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, cursor.Err()
}

// CountTasks counts the task documents matching filter.
func (m *MongoStorage) CountTasks(ctx context.Context, filter TaskFilter) (int, error) {
	n, err := m.collection(tasksCollection).CountDocuments(ctx, filter.mongoFilter())
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// MaxPriority returns the highest priority among the user's active tasks in the bucket.
// Returns 0 when the bucket is empty.
func (m *MongoStorage) MaxPriority(ctx context.Context, userID string, urgency models.Urgency) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "priority", Value: -1}}).SetProjection(bson.M{"priority": 1})
	var top struct {
		Priority int `bson:"priority"`
	}
	err := m.collection(tasksCollection).FindOne(ctx, bson.M{"user_id": userID, "urgency": urgency, "completed": false}, opts).Decode(&top)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return top.Priority, nil
}

// UpdateTask sets the given fields on one of the user's tasks and returns the updated document.
// An urgency change only matches an active task, or a completed one already in that bucket;
// otherwise ErrTaskCompleted is returned.
func (m *MongoStorage) UpdateTask(ctx context.Context, taskID, userID string, update TaskUpdate) (*models.Task, error) {
	filter := bson.M{"_id": taskID, "user_id": userID}
	set := bson.M{"updated_at": updatedAt(update.UpdatedAt)}
	if update.Title != nil {
		set["title"] = *update.Title
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.Urgency != nil {
		set["urgency"] = *update.Urgency
		filter["$or"] = bson.A{bson.M{"completed": false}, bson.M{"urgency": *update.Urgency}}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	task := &models.Task{}
	err := m.collection(tasksCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(task)
	if err == nil {
		return task, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) || update.Urgency == nil {
		return nil, notFound(err)
	}

	n, err := m.collection(tasksCollection).CountDocuments(ctx, bson.M{"_id": taskID, "user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("task update: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrTaskCompleted
}

// SetTaskCompletion flips the completion state only if the stored document is in
// the opposite state, so two overlapping requests cannot both move the same task.
func (m *MongoStorage) SetTaskCompletion(ctx context.Context, taskID, userID string, completed bool, at time.Time) (*models.Task, error) {
	set := bson.M{"completed": completed, "completed_at": nil, "updated_at": at}
	if completed {
		set["completed_at"] = at
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)
	before := &models.Task{}
	filter := bson.M{"_id": taskID, "user_id": userID, "completed": !completed}
	err := m.collection(tasksCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(before)
	if err == nil {
		return before, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, err := m.collection(tasksCollection).CountDocuments(ctx, bson.M{"_id": taskID, "user_id": userID})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrUnchanged
}

// DeleteTask deletes one of the user's task documents.
// Returns ErrNotFound if nothing was deleted.
func (m *MongoStorage) DeleteTask(ctx context.Context, taskID, userID string) error {
	result, err := m.collection(tasksCollection).DeleteOne(ctx, bson.M{"_id": taskID, "user_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAchievement inserts an achievement document into the 'achievements' collection.
func (m *MongoStorage) AddAchievement(ctx context.Context, achievement *models.Achievement) (*models.Achievement, error) {
	a := *achievement
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, err := m.collection(achievementsCollection).InsertOne(ctx, a); err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAchievements returns the user's achievements newest first, at most limit when limit > 0.
func (m *MongoStorage) FindAchievements(ctx context.Context, userID string, limit int) ([]models.Achievement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "unlocked_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := m.collection(achievementsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	found := []models.Achievement{}
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	return found, nil
}

// GetDailyStat finds the user's 'dailyStats' document for day.
// Returns ErrNotFound if there is none.
func (m *MongoStorage) GetDailyStat(ctx context.Context, userID string, day time.Time) (*models.DailyStat, error) {
	stat := &models.DailyStat{}
	err := m.collection(dailyStatsCollection).FindOne(ctx, bson.M{"user_id": userID, "date": day}).Decode(stat)
	if err != nil {
		return nil, notFound(err)
	}
	stat.Date = stat.Date.In(day.Location())
	return stat, nil
}

// AdjustDailyStat makes sure the day's row exists with zeroed counters, then applies
// the floored delta with a single pipeline update.
func (m *MongoStorage) AdjustDailyStat(ctx context.Context, userID string, day time.Time, delta models.DailyStatDelta) (*models.DailyStat, error) {
	coll := m.collection(dailyStatsCollection)
	filter := bson.M{"user_id": userID, "date": day}

	seed := bson.M{"$setOnInsert": bson.M{
		"_id":                 uuid.NewString(),
		"tasks_completed":     0,
		"immediate_completed": 0,
		"medium_completed":    0,
		"delayed_completed":   0,
		"xp_earned":           0,
	}}
	if _, err := coll.UpdateOne(ctx, filter, seed, options.Update().SetUpsert(true)); err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, err
	}

	set := bson.D{
		{Key: "tasks_completed", Value: floorAddExpr("tasks_completed", delta.TasksCompleted)},
		{Key: "immediate_completed", Value: floorAddExpr("immediate_completed", delta.ImmediateCompleted)},
		{Key: "medium_completed", Value: floorAddExpr("medium_completed", delta.MediumCompleted)},
		{Key: "delayed_completed", Value: floorAddExpr("delayed_completed", delta.DelayedCompleted)},
		{Key: "xp_earned", Value: floorAddExpr("xp_earned", delta.XPEarned)},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	stat := &models.DailyStat{}
	if err := coll.FindOneAndUpdate(ctx, filter, mongo.Pipeline{{{Key: "$set", Value: set}}}, opts).Decode(stat); err != nil {
		return nil, notFound(err)
	}
	stat.Date = stat.Date.In(day.Location())
	return stat, nil
}

// FindDailyStats returns the user's 'dailyStats' documents with from <= date < to, oldest first.
func (m *MongoStorage) FindDailyStats(ctx context.Context, userID string, from, to time.Time) ([]models.DailyStat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	filter := bson.M{"user_id": userID, "date": bson.M{"$gte": from, "$lt": to}}
	cursor, err := m.collection(dailyStatsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	found := []models.DailyStat{}
	if err := cursor.All(ctx, &found); err != nil {
		return nil, err
	}
	for i := range found {
		found[i].Date = found[i].Date.In(from.Location())
	}
	return found, nil
}
