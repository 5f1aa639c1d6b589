// internal/handler/presence_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"call-service/internal/service"
)

// PresenceHandler exposes the fanout hook used by collaborator flows
// (payment completion, trial grants) after they mutate subscription
// state. The core has no subscription-change listener of its own.
type PresenceHandler struct {
	fanout *service.FanoutService
}

func NewPresenceHandler(fanout *service.FanoutService) *PresenceHandler {
	return &PresenceHandler{
		fanout: fanout,
	}
}

// NotifyEligibilityChange godoc
// @Summary      Notify friends of an eligibility change
// @Description  Recomputes the user's call eligibility and fans it out to their accepted friends
// @Tags         presence
// @Produce      json
// @Param        userId path string true "User ID"
// @Success      202 {object} map[string]string
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /presence/notify/{userId} [post]
// @Security     BearerAuth
func (h *PresenceHandler) NotifyEligibilityChange(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	h.fanout.NotifyEligibilityChange(c.Request.Context(), userID)

	c.JSON(http.StatusAccepted, gin.H{"status": "notified"})
}
