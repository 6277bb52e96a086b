package ranking

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Mode selects the ordering of a feed.
type Mode string

const (
	// ModeHot orders by HotRank, highest first.
	ModeHot Mode = "hot"
	// ModeTop orders by raw score, highest first.
	ModeTop Mode = "top"
	// ModeNew orders by creation time, newest first.
	ModeNew Mode = "new"
)

// ParseMode maps a query value to a Mode. An empty value means ModeHot.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHot:
		return ModeHot, nil
	case ModeTop:
		return ModeTop, nil
	case ModeNew:
		return ModeNew, nil
	default:
		return "", fmt.Errorf("unknown sort mode %q", s)
	}
}

// Entry is the minimal view of a content item the sorter needs.
type Entry struct {
	ID        string
	Score     int
	CreatedAt time.Time
}

// Sort orders entries in place for the given mode.
// Ties fall back to createdAt descending and then ID ascending, so the order is total.
func Sort(entries []Entry, mode Mode, now time.Time) {
	primary := primaryKey(mode, now)
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(primary(b), primary(a)); c != 0 {
			return c
		}
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Order returns the IDs of entries in feed order without touching the input slice.
func Order(entries []Entry, mode Mode, now time.Time) []string {
	sorted := slices.Clone(entries)
	Sort(sorted, mode, now)
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ID
	}
	return ids
}

func primaryKey(mode Mode, now time.Time) func(Entry) float64 {
	switch mode {
	case ModeTop:
		return func(e Entry) float64 { return float64(e.Score) }
	case ModeNew:
		// createdAt is already the tie-breaker, so new needs no primary key.
		return func(Entry) float64 { return 0 }
	default:
		return func(e Entry) float64 { return HotRank(e.Score, e.CreatedAt, now) }
	}
}
