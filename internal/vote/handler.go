package vote

import (
	"fmt"
	"net/http"

	"github.com/SlpAus/trailhead-backend/internal/content"
	"github.com/SlpAus/trailhead-backend/internal/identity"
	"github.com/SlpAus/trailhead-backend/internal/platform/respond"
	"github.com/SlpAus/trailhead-backend/internal/store"
	"github.com/gin-gonic/gin"
)

// VoteRequestBody is the JSON body of a vote submission.
type VoteRequestBody struct {
	VoteType Type `json:"voteType" binding:"required"`
}

// Handler serves /api/content/:type/:id/vote.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the vote routes on a group rooted at /api/content.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.POST("/:type/:id/vote", h.SubmitVote)
	rg.GET("/:type/:id/vote", h.GetMyVote)
}

// SubmitVote applies the caller's vote and returns the new aggregate and state.
func (h *Handler) SubmitVote(c *gin.Context) {
	// 1. Resolve the target
	t, err := content.ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	userID := identity.UserID(c)
	if userID == "" {
		respond.Error(c, store.ErrUnauthenticated)
		return
	}

	// 2. Bind the body
	var body VoteRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, fmt.Errorf("%w: malformed body: %v", store.ErrInvalid, err))
		return
	}

	// 3. Run the transaction
	out, err := h.service.CastVote(c.Request.Context(), string(t), c.Param("id"), userID, body.VoteType)
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetMyVote returns the caller's current vote state on one item.
func (h *Handler) GetMyVote(c *gin.Context) {
	t, err := content.ParseType(c.Param("type"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	state, err := h.service.MyVote(c.Request.Context(), string(t), c.Param("id"), identity.UserID(c))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}
