package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelForXP(t *testing.T) {
	cases := map[int]int{
		-20: 1,
		0:   1,
		99:  1,
		100: 2,
		105: 2,
		250: 3,
	}
	for xp, level := range cases {
		assert.Equal(t, level, LevelForXP(xp), "xp %d", xp)
	}
}

func TestUrgency(t *testing.T) {
	for _, u := range Urgencies {
		assert.True(t, u.IsValid())
	}
	assert.False(t, Urgency("someday").IsValid())
	assert.Less(t, UrgencyImmediate.Rank(), UrgencyMedium.Rank())
	assert.Less(t, UrgencyMedium.Rank(), UrgencyDelayed.Rank())
	assert.Less(t, UrgencyDelayed.Rank(), Urgency("someday").Rank())
}

func TestTheme(t *testing.T) {
	assert.True(t, ThemeLight.IsValid())
	assert.True(t, ThemeDark.IsValid())
	assert.True(t, ThemeSystem.IsValid())
	assert.False(t, Theme("sepia").IsValid())
}

func TestDayStart(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)
	got := DayStart(time.Date(2024, 6, 1, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, loc), got)
}

func TestDailyStatDelta(t *testing.T) {
	s := DailyStat{}
	NewDailyStatDelta(UrgencyMedium, 10, 1).Apply(&s)
	assert.Equal(t, DailyStat{TasksCompleted: 1, MediumCompleted: 1, XPEarned: 10}, s)

	NewDailyStatDelta(UrgencyImmediate, 15, -1).Apply(&s)
	assert.Equal(t, DailyStat{TasksCompleted: 0, MediumCompleted: 1, XPEarned: 0}, s)
}
