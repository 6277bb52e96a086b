package ranking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHotRank(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		score     int
		createdAt time.Time
		want      float64
	}{
		{"first hour is undecayed", 10, now.Add(-30 * time.Minute), 10},
		{"exactly one hour", 10, now.Add(-time.Hour), 10},
		{"three hours", 10, now.Add(-3 * time.Hour), 10.0 / 3.0},
		{"negative score", -4, now.Add(-2 * time.Hour), -2},
		{"zero score", 0, now.Add(-5 * time.Hour), 0},
		{"future timestamp floors at one hour", 6, now.Add(time.Hour), 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, HotRank(tt.score, tt.createdAt, now), 1e-9)
		})
	}
}

func TestSortHotBreaksTiesByNewestFirst(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{ID: "old", Score: 5, CreatedAt: now.Add(-40 * time.Minute)},
		{ID: "new", Score: 5, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "neg", Score: -1, CreatedAt: now.Add(-10 * time.Minute)},
		{ID: "zero", Score: 0, CreatedAt: now.Add(-20 * time.Hour)},
		{ID: "decayed", Score: 20, CreatedAt: now.Add(-10 * time.Hour)},
	}

	assert.Equal(t, []string{"new", "old", "decayed", "zero", "neg"}, Order(entries, ModeHot, now))
	// Order must not reorder its input.
	assert.Equal(t, "old", entries[0].ID)
}

func TestSortIsDeterministicForFullTies(t *testing.T) {
	now := time.Now()
	created := now.Add(-2 * time.Hour)
	entries := []Entry{
		{ID: "c", Score: 1, CreatedAt: created},
		{ID: "a", Score: 1, CreatedAt: created},
		{ID: "b", Score: 1, CreatedAt: created},
	}

	for i := 0; i < 5; i++ {
		assert.Equal(t, []string{"a", "b", "c"}, Order(entries, ModeHot, now))
	}
}

func TestSortTopAndNew(t *testing.T) {
	now := time.Now()
	entries := []Entry{
		{ID: "a", Score: 3, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "b", Score: 7, CreatedAt: now.Add(-30 * time.Hour)},
		{ID: "c", Score: 3, CreatedAt: now.Add(-1 * time.Hour)},
	}

	assert.Equal(t, []string{"b", "c", "a"}, Order(entries, ModeTop, now))
	assert.Equal(t, []string{"c", "a", "b"}, Order(entries, ModeNew, now))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeHot, m)

	m, err = ParseMode("TOP")
	require.NoError(t, err)
	assert.Equal(t, ModeTop, m)

	_, err = ParseMode("controversial")
	assert.Error(t, err)
}
