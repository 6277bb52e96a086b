package ranking

import (
	"math"
	"time"
)

// --- Algorithm constants ---

const (
	// minAgeHours is the age floor: an item keeps its undecayed score for its whole first hour.
	minAgeHours = 1.0
)

// --- Hot rank ---

// HotRank turns a score and an age into a sortable popularity value.
// ageHours = max(1, hours between createdAt and now); rank = score / ageHours.
// The value is only used for ordering and is never persisted.
func HotRank(score int, createdAt, now time.Time) float64 {
	ageHours := math.Max(minAgeHours, now.Sub(createdAt).Hours())
	return float64(score) / ageHours
}
