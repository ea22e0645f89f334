package engine

import (
	"context"
	"log"
	"time"

	"github.com/jghoshh/taskvibe/backend/models"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// Options configures a Service. Zero values fall back to the wall clock, the local
// time zone and no event delivery.
type Options struct {
	Now      func() time.Time
	Location *time.Location
	Events   EventSink
}

// Service implements the task, completion and stats rules on top of a store.
type Service struct {
	store  storage.StorageInterface
	now    func() time.Time
	loc    *time.Location
	events EventSink
}

// NewService creates a Service over store. Unset options fall back to their defaults.
func NewService(store storage.StorageInterface, opts Options) *Service {
	s := &Service{store: store, now: opts.Now, loc: opts.Location, events: opts.Events}
	if s.now == nil {
		s.now = time.Now
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s
}

// clock returns the current time in the service's zone, which decides where "today" starts.
func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Service) today() time.Time {
	return models.DayStart(s.clock())
}

func requireUser(userID string) error {
	if userID == "" {
		return ErrUnauthorized
	}
	return nil
}

// requireStoredUser fails with ErrNotFound unless userID names a stored user. Every
// write that books progress goes through it, so no backend ever holds tasks,
// achievements or stats for a user that does not exist.
func (s *Service) requireStoredUser(ctx context.Context, userID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	_, err := s.store.GetUser(ctx, userID)
	return err
}

// emit hands ev to the sink. Delivery problems never fail the calling operation.
func (s *Service) emit(ctx context.Context, ev Event) {
	if s.events == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.clock()
	}
	if err := s.events.Emit(ctx, ev); err != nil {
		log.Printf("failed to emit %s event for user %s: %v", ev.Kind, ev.UserID, err)
	}
}
