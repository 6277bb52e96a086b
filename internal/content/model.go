package content

import (
	"fmt"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
)

// Type names a votable content collection. The value doubles as the store resource key.
type Type string

const (
	TypeTip        Type = "tips"
	TypeQuestion   Type = "questions"
	TypeGearReview Type = "gear_reviews"
	TypePhotoStory Type = "photo_stories"
)

// Types lists every content type in a stable order.
var Types = []Type{TypeTip, TypeQuestion, TypeGearReview, TypePhotoStory}

// ParseType validates a path segment naming a content type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown content type %q", store.ErrInvalid, s)
}

// Item is the fixed schema every stored content document is mapped into.
// Counter fields are owned by the engine; type-specific fields are validated per Type.
type Item struct {
	ID            string    `json:"id,omitempty" validate:"required"`
	Type          Type      `json:"type,omitempty" validate:"required"`
	AuthorID      string    `json:"authorId" validate:"required"`
	CreatedAt     time.Time `json:"createdAt" validate:"required"`
	UpvoteCount   int       `json:"upvoteCount" validate:"gte=0"`
	DownvoteCount int       `json:"downvoteCount" validate:"gte=0"`
	Score         int       `json:"score"`
	CommentCount  int       `json:"commentCount" validate:"gte=0"`
	// Hidden is set by moderation elsewhere; the engine only reads it.
	Hidden bool   `json:"hidden"`
	Title  string `json:"title,omitempty" validate:"max=200"`
	Body   string `json:"body,omitempty" validate:"max=20000"`

	// tips
	Category string `json:"category,omitempty"`
	// questions
	Tags     []string `json:"tags,omitempty" validate:"max=10,dive,min=1,max=40"`
	Answered bool     `json:"answered,omitempty"`
	// gear reviews
	ProductName string `json:"productName,omitempty" validate:"max=200"`
	Rating      int    `json:"rating,omitempty" validate:"gte=0,lte=5"`
	// photo stories
	ImageURLs []string `json:"imageUrls,omitempty" validate:"max=20,dive,url"`
}

// Aggregate returns the counter view of the item.
func (i Item) Aggregate() store.Aggregate {
	return store.Aggregate{
		UpvoteCount:   i.UpvoteCount,
		DownvoteCount: i.DownvoteCount,
		Score:         i.Score,
		CommentCount:  i.CommentCount,
	}
}

// WithAggregate returns a copy of the item carrying the given counters.
func (i Item) WithAggregate(a store.Aggregate) Item {
	i.UpvoteCount = a.UpvoteCount
	i.DownvoteCount = a.DownvoteCount
	i.Score = a.Score
	i.CommentCount = a.CommentCount
	return i
}

// Draft is the author-supplied part of a new item.
type Draft struct {
	Title       string   `json:"title"`
	Body        string   `json:"body"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	ProductName string   `json:"productName"`
	Rating      int      `json:"rating"`
	ImageURLs   []string `json:"imageUrls"`
}

// Quarantined is a stored document that failed validation. It is logged and dropped from feeds.
type Quarantined struct {
	ID     string
	Reason string
}
