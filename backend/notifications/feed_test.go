package notifications

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedDrain(t *testing.T) {
	f := NewFeed(0)
	f.Push("user-1", Toast{ID: "a", Title: "Great job!"})
	f.Push("user-1", Toast{ID: "b", Title: "Level Up!"})
	f.Push("user-2", Toast{ID: "c", Title: "Task restored"})

	got := f.Drain("user-1")
	assert.Equal(t, []string{"a", "b"}, ids(got))
	assert.Empty(t, f.Drain("user-1"))
	assert.Equal(t, []string{"c"}, ids(f.Drain("user-2")))
}

func TestFeedEvictsOldest(t *testing.T) {
	f := NewFeed(3)
	for i := 0; i < 5; i++ {
		f.Push("user-1", Toast{ID: fmt.Sprint(i)})
	}
	assert.Equal(t, []string{"2", "3", "4"}, ids(f.Drain("user-1")))
}

func ids(toasts []Toast) []string {
	out := make([]string, 0, len(toasts))
	for _, t := range toasts {
		out = append(out, t.ID)
	}
	return out
}
