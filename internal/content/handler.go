package content

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/platform/respond"
	"github.com/SlpAus/trailhead-backend/internal/ranking"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/gin-gonic/gin"
)

// Handler serves /api/content/:type.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the content routes on a group rooted at /api/content.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/:type", h.GetFeed)
	rg.POST("/:type", h.CreateItem)
	rg.GET("/:type/:id", h.GetItem)
	rg.PATCH("/:type/:id", h.UpdateItem)
	rg.DELETE("/:type/:id", h.DeleteItem)
}

// RegisterCounters mounts the comment counter routes. rg must only admit the comment service.
func (h *Handler) RegisterCounters(rg *gin.RouterGroup) {
	rg.POST("/:type/:id/comments", h.AddComment)
	rg.DELETE("/:type/:id/comments", h.RemoveComment)
}

// GetFeed returns a ranked feed without hidden items. Query: sort=hot|top|new.
func (h *Handler) GetFeed(c *gin.Context) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	mode, err := ranking.ParseMode(c.Query("sort"))
	if err != nil {
		respond.Error(c, fmt.Errorf("%w: %v", store.ErrInvalid, err))
		return
	}
	items, err := h.service.Feed(c.Request.Context(), t, mode, false)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handler) GetItem(c *gin.Context) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	item, err := h.service.Get(c.Request.Context(), t, c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) CreateItem(c *gin.Context) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	var draft Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		respond.Error(c, fmt.Errorf("%w: malformed body: %v", store.ErrInvalid, err))
		return
	}

	item, err := h.service.Create(c.Request.Context(), t, identity.UserID(c), draft)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) UpdateItem(c *gin.Context) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.Error(c, fmt.Errorf("%w: malformed body: %v", store.ErrInvalid, err))
		return
	}

	item, err := h.service.Update(c.Request.Context(), t, c.Param("id"), identity.UserID(c), patch)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	if err := h.service.Delete(c.Request.Context(), t, c.Param("id"), identity.UserID(c)); err != nil {
		respond.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddComment and RemoveComment are called by the comment service after it stored or deleted a comment.
func (h *Handler) AddComment(c *gin.Context) {
	h.adjustComments(c, 1)
}

func (h *Handler) RemoveComment(c *gin.Context) {
	h.adjustComments(c, -1)
}

func (h *Handler) adjustComments(c *gin.Context, delta int) {
	t, err := ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	var agg store.Aggregate
	if delta > 0 {
		agg, err = h.service.RecordComment(c.Request.Context(), t, c.Param("id"))
	} else {
		agg, err = h.service.RemoveComment(c.Request.Context(), t, c.Param("id"))
	}
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, agg)
}
