package backend

import (
	"context"

	"github.com/google/uuid"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/notifications"
	"github.com/jghoshh/taskvibe/backend/queue"
)

// queueSink publishes engine events on the event queue.
type queueSink struct {
	queue *queue.Queue
}

// Emit publishes ev with a fresh id so consumers can deduplicate it.
func (s *queueSink) Emit(ctx context.Context, ev engine.Event) error {
	return queue.ProcessEvent(ctx, &queue.EventMessage{
		ID:        uuid.NewString(),
		UserID:    ev.UserID,
		Kind:      ev.Kind,
		Title:     ev.Title,
		Message:   ev.Message,
		CreatedAt: ev.At,
	}, s.queue)
}

// toastHandler turns consumed events into toasts on feed.
func toastHandler(feed *notifications.Feed) queue.Handler {
	return func(ctx context.Context, msg *queue.EventMessage) error {
		feed.Push(msg.UserID, notifications.Toast{
			ID:        msg.ID,
			Kind:      msg.Kind,
			Title:     msg.Title,
			Message:   msg.Message,
			CreatedAt: msg.CreatedAt,
		})
		return nil
	}
}
