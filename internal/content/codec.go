package content

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/go-playground/validator/v10"
)

// pendingID stands in for the id during validation of a document that has not been stored yet.
const pendingID = "pending"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateItem, Item{})
	return v
}

// validateItem holds the rules that depend on more than one field or on the content type.
func validateItem(sl validator.StructLevel) {
	item := sl.Current().Interface().(Item)

	if item.Score != item.UpvoteCount-item.DownvoteCount {
		sl.ReportError(item.Score, "Score", "score", "score_invariant", "")
	}

	switch item.Type {
	case TypeTip, TypeQuestion:
		if strings.TrimSpace(item.Title) == "" {
			sl.ReportError(item.Title, "Title", "title", "required", "")
		}
	case TypeGearReview:
		if strings.TrimSpace(item.ProductName) == "" {
			sl.ReportError(item.ProductName, "ProductName", "productName", "required", "")
		}
		if item.Rating < 1 {
			sl.ReportError(item.Rating, "Rating", "rating", "min", "1")
		}
	case TypePhotoStory:
		if len(item.ImageURLs) == 0 {
			sl.ReportError(item.ImageURLs, "ImageURLs", "imageUrls", "required", "")
		}
	}
}

// Decode maps a stored document into the fixed schema of t and validates it.
func Decode(t Type, r store.Record) (Item, error) {
	var item Item
	if err := json.Unmarshal(r.Data, &item); err != nil {
		return Item{}, fmt.Errorf("%w: %s/%s is not a valid document: %v", store.ErrInvalid, t, r.ID, err)
	}
	item.ID = r.ID
	item.Type = t
	if err := validate.Struct(item); err != nil {
		return Item{}, fmt.Errorf("%w: %s/%s failed validation: %v", store.ErrInvalid, t, r.ID, err)
	}
	return item, nil
}

// DecodeAll decodes every record, splitting out the ones that fail validation.
func DecodeAll(t Type, records []store.Record) ([]Item, []Quarantined) {
	items := make([]Item, 0, len(records))
	var bad []Quarantined
	for _, r := range records {
		item, err := Decode(t, r)
		if err != nil {
			bad = append(bad, Quarantined{ID: r.ID, Reason: err.Error()})
			continue
		}
		items = append(items, item)
	}
	return items, bad
}

// NewDocument builds and validates the stored body of a fresh item with zeroed counters.
func NewDocument(t Type, authorID string, d Draft, now time.Time) (json.RawMessage, error) {
	item := Item{
		ID:          pendingID,
		Type:        t,
		AuthorID:    authorID,
		CreatedAt:   now.UTC(),
		Title:       strings.TrimSpace(d.Title),
		Body:        d.Body,
		Category:    d.Category,
		Tags:        d.Tags,
		ProductName: strings.TrimSpace(d.ProductName),
		Rating:      d.Rating,
		ImageURLs:   d.ImageURLs,
	}
	if err := validate.Struct(item); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalid, err)
	}
	// id and type are carried by the record and the resource, not the body.
	item.ID = ""
	item.Type = ""
	return json.Marshal(item)
}

// protectedFields may never be changed through an update.
var protectedFields = append([]string{"id", "type", "authorId", "createdAt", "hidden"}, store.CounterFields...)

// CheckPatch rejects patches that touch engine-owned, moderation or identity fields.
func CheckPatch(patch map[string]any) error {
	for k := range patch {
		if slices.Contains(protectedFields, k) {
			return fmt.Errorf("%w: field %q cannot be updated", store.ErrInvalid, k)
		}
	}
	return nil
}
