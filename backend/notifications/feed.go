package notifications

import (
	"sync"
	"time"
)

// DefaultFeedSize is how many toasts are kept per user before the oldest are dropped.
const DefaultFeedSize = 20

// Toast is a short message shown to the user once.
type Toast struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed keeps undelivered toasts per user in memory.
type Feed struct {
	mu    sync.Mutex
	size  int
	toast map[string][]Toast
}

// NewFeed creates a feed holding at most size toasts per user.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size, toast: map[string][]Toast{}}
}

// Push appends a toast for userID, evicting the oldest when the feed is full.
func (f *Feed) Push(userID string, t Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := append(f.toast[userID], t)
	if len(list) > f.size {
		list = append([]Toast(nil), list[len(list)-f.size:]...)
	}
	f.toast[userID] = list
}

// Drain returns the user's pending toasts oldest first and forgets them.
func (f *Feed) Drain(userID string) []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := f.toast[userID]
	delete(f.toast, userID)
	if list == nil {
		return []Toast{}
	}
	return list
}
