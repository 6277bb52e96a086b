package trip

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/platform/respond"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/gin-gonic/gin"
)

// Handler serves /api/trips/:tripId. Every route requires a signed-in user.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PackedRequestBody is the body of PUT .../packing/:id/packed.
type PackedRequestBody struct {
	Packed *bool `json:"packed" binding:"required"`
}

// Register mounts the trip routes on a group rooted at /api/trips.
func (h *Handler) Register(rg *gin.RouterGroup) {
	trips := rg.Group("/:tripId", requireUser)
	{
		trips.GET("/status", h.GetStatus)

		trips.GET("/packing", h.ListPacking)
		trips.POST("/packing", h.AddPacking)
		trips.PATCH("/packing/:id", h.UpdatePacking)
		trips.PUT("/packing/:id/packed", h.SetPacked)
		trips.DELETE("/packing/:id", h.RemovePacking)

		trips.GET("/meals", h.ListMeals)
		trips.POST("/meals", h.AddMeal)
		trips.PATCH("/meals/:id", h.UpdateMeal)
		trips.DELETE("/meals/:id", h.RemoveMeal)
	}
}

func requireUser(c *gin.Context) {
	if identity.UserID(c) == "" {
		respond.Error(c, store.ErrUnauthenticated)
		c.Abort()
		return
	}
	c.Next()
}

func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respond.Error(c, fmt.Errorf("%w: malformed body: %v", store.ErrInvalid, err))
		return false
	}
	return true
}

func (h *Handler) GetStatus(c *gin.Context) {
	status, err := h.service.Status(c.Param("tripId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// --- Packing ---

func (h *Handler) ListPacking(c *gin.Context) {
	items, err := h.service.ListPacking(c.Request.Context(), c.Param("tripId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) AddPacking(c *gin.Context) {
	var draft PackingDraft
	if !bind(c, &draft) {
		return
	}
	item, err := h.service.AddPacking(c.Request.Context(), c.Param("tripId"), draft)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) UpdatePacking(c *gin.Context) {
	var patch PackingPatch
	if !bind(c, &patch) {
		return
	}
	item, err := h.service.UpdatePacking(c.Request.Context(), c.Param("tripId"), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) SetPacked(c *gin.Context) {
	var body PackedRequestBody
	if !bind(c, &body) {
		return
	}
	item, err := h.service.SetPacked(c.Request.Context(), c.Param("tripId"), c.Param("id"), *body.Packed)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) RemovePacking(c *gin.Context) {
	if err := h.service.RemovePacking(c.Request.Context(), c.Param("tripId"), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Meals ---

func (h *Handler) ListMeals(c *gin.Context) {
	meals, err := h.service.ListMeals(c.Request.Context(), c.Param("tripId"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, meals)
}

func (h *Handler) AddMeal(c *gin.Context) {
	var draft MealDraft
	if !bind(c, &draft) {
		return
	}
	meal, err := h.service.AddMeal(c.Request.Context(), c.Param("tripId"), draft)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, meal)
}

func (h *Handler) UpdateMeal(c *gin.Context) {
	var patch MealPatch
	if !bind(c, &patch) {
		return
	}
	meal, err := h.service.UpdateMeal(c.Request.Context(), c.Param("tripId"), c.Param("id"), patch)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, meal)
}

func (h *Handler) RemoveMeal(c *gin.Context) {
	if err := h.service.RemoveMeal(c.Request.Context(), c.Param("tripId"), c.Param("id")); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
