package trip

import (
	"time"
)

// Slot is the time of day a meal is planned for.
type Slot string

const (
	SlotBreakfast Slot = "breakfast"
	SlotLunch     Slot = "lunch"
	SlotDinner    Slot = "dinner"
	SlotSnack     Slot = "snack"
)

// PackingItem is one entry of a trip's packing list.
type PackingItem struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name" validate:"required,max=120"`
	Category  string    `json:"category,omitempty" validate:"max=60"`
	Quantity  int       `json:"quantity" validate:"gte=1,lte=999"`
	Packed    bool      `json:"packed"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *PackingItem) setID(id string) { p.ID = id }

// Meal is one planned meal of a trip.
type Meal struct {
	ID        string    `json:"id,omitempty"`
	Day       int       `json:"day" validate:"gte=1,lte=365"`
	Slot      Slot      `json:"slot" validate:"required,oneof=breakfast lunch dinner snack"`
	Name      string    `json:"name" validate:"required,max=120"`
	Notes     string    `json:"notes,omitempty" validate:"max=500"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m *Meal) setID(id string) { m.ID = id }

// PackingDraft is the user-supplied part of a new packing item.
type PackingDraft struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Quantity int    `json:"quantity"`
}

// PackingPatch is a partial edit; nil fields are left alone.
type PackingPatch struct {
	Name     *string `json:"name" validate:"omitnil,min=1,max=120"`
	Category *string `json:"category" validate:"omitnil,max=60"`
	Quantity *int    `json:"quantity" validate:"omitnil,gte=1,lte=999"`
	Packed   *bool   `json:"packed"`
}

// MealDraft is the user-supplied part of a new meal.
type MealDraft struct {
	Day   int    `json:"day"`
	Slot  Slot   `json:"slot"`
	Name  string `json:"name"`
	Notes string `json:"notes"`
}

// MealPatch is a partial edit; nil fields are left alone.
type MealPatch struct {
	Day   *int    `json:"day" validate:"omitnil,gte=1,lte=365"`
	Slot  *Slot   `json:"slot" validate:"omitnil,oneof=breakfast lunch dinner snack"`
	Name  *string `json:"name" validate:"omitnil,min=1,max=120"`
	Notes *string `json:"notes" validate:"omitnil,max=500"`
}

// StoreStatus tells a client which store serves each list of a trip.
type StoreStatus struct {
	PackingLocal bool `json:"packingLocal"`
	MealsLocal   bool `json:"mealsLocal"`
}
