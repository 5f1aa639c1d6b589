// internal/handler/friend_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-service/internal/middleware"
	"call-service/internal/service"
)

type FriendHandler struct {
	friendService *service.FriendService
	logger        *zap.Logger
}

func NewFriendHandler(friendService *service.FriendService, logger *zap.Logger) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		logger:        logger,
	}
}

type SendFriendRequestRequest struct {
	RecipientID string `json:"recipientId" binding:"required"`
}

type RespondFriendRequestRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

// SendFriendRequest godoc
// @Summary      Send a friend request
// @Description  Creates a pending friendship and notifies the recipient
// @Tags         friend
// @Accept       json
// @Produce      json
// @Param        request body SendFriendRequestRequest true "Recipient"
// @Success      201 {object} FriendshipResponse
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /friends/requests [post]
// @Security     BearerAuth
func (h *FriendHandler) SendFriendRequest(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipientID, err := uuid.Parse(req.RecipientID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipient ID"})
		return
	}

	friendship, err := h.friendService.SendRequest(c.Request.Context(), userID, recipientID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, ToFriendshipResponse(friendship))
}

// RespondFriendRequest godoc
// @Summary      Respond to a friend request
// @Description  Accepts or rejects a pending request; only the recipient may respond
// @Tags         friend
// @Accept       json
// @Produce      json
// @Param        connectionId path string true "Connection ID"
// @Param        request body RespondFriendRequestRequest true "Accept flag"
// @Success      200 {object} FriendshipResponse
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /friends/requests/{connectionId}/respond [post]
// @Security     BearerAuth
func (h *FriendHandler) RespondFriendRequest(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	connectionID, err := uuid.Parse(c.Param("connectionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid connection ID"})
		return
	}

	var req RespondFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	friendship, err := h.friendService.Respond(c.Request.Context(), userID, connectionID, *req.Accept, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ToFriendshipResponse(friendship))
}

// RemoveFriend godoc
// @Summary      Remove a friend
// @Description  Deletes the friendship in either direction and notifies the removed party
// @Tags         friend
// @Produce      json
// @Param        userId path string true "Friend user ID"
// @Success      200 {object} map[string]string
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /friends/{userId} [delete]
// @Security     BearerAuth
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	friendID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.friendService.Remove(c.Request.Context(), userID, friendID); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// ListFriends godoc
// @Summary      List accepted friends
// @Description  Returns accepted friends with live presence and eligibility attached
// @Tags         friend
// @Produce      json
// @Success      200 {array} service.FriendEntry
// @Failure      401 {object} map[string]string
// @Router       /friends [get]
// @Security     BearerAuth
func (h *FriendHandler) ListFriends(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	friends, err := h.friendService.List(c.Request.Context(), userID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, friends)
}
