// internal/handler/call_handler.go
package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"call-service/internal/middleware"
	"call-service/internal/service"
)

type CallHandler struct {
	callService *service.CallService
	logger      *zap.Logger
}

func NewCallHandler(callService *service.CallService, logger *zap.Logger) *CallHandler {
	return &CallHandler{
		callService: callService,
		logger:      logger,
	}
}

type UpdateAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

type InitiateCallRequest struct {
	CalleeID string  `json:"calleeId" binding:"required"`
	TopicID  *string `json:"topicId"`
}

type InitiateRandomCallRequest struct {
	TopicID *string `json:"topicId"`
}

type RespondCallRequest struct {
	Accept *bool `json:"accept" binding:"required"`
}

type EndCallRequest struct {
	Reason string `json:"reason"`
}

type RateCallRequest struct {
	Rating int `json:"rating" binding:"required"`
}

// UpdateAvailability godoc
// @Summary      Update own availability
// @Description  Flags the caller as open (or closed) to incoming calls
// @Tags         availability
// @Accept       json
// @Produce      json
// @Param        request body UpdateAvailabilityRequest true "Availability flag"
// @Success      200 {object} map[string]bool
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Router       /availability [put]
// @Security     BearerAuth
func (h *CallHandler) UpdateAvailability(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req UpdateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.callService.SetAvailability(c.Request.Context(), userID, *req.Available); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": *req.Available})
}

// GetCandidates godoc
// @Summary      List available candidates
// @Description  Lists online, available, call-eligible users the caller can be matched with
// @Tags         call
// @Produce      json
// @Success      200 {array} service.Candidate
// @Failure      401 {object} map[string]string
// @Router       /candidates [get]
// @Security     BearerAuth
func (h *CallHandler) GetCandidates(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	candidates, err := h.callService.Candidates(c.Request.Context(), userID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, candidates)
}

// InitiateCall godoc
// @Summary      Initiate a direct call
// @Description  Creates a call to a known callee and pushes the invitation to their live connections
// @Tags         call
// @Accept       json
// @Produce      json
// @Param        request body InitiateCallRequest true "Callee and optional topic"
// @Success      201 {object} InitiateCallResponse
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /calls [post]
// @Security     BearerAuth
func (h *CallHandler) InitiateCall(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	calleeID, err := uuid.Parse(req.CalleeID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid callee ID"})
		return
	}

	topicID, ok := parseOptionalUUID(req.TopicID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic ID"})
		return
	}

	call, callee, err := h.callService.Initiate(c.Request.Context(), userID, calleeID, topicID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, InitiateCallResponse{
		Call:   ToCallResponse(call),
		Callee: ToCalleeInfo(callee),
	})
}

// InitiateRandomCall godoc
// @Summary      Initiate a random call
// @Description  Matches the caller with a random available, online, eligible candidate
// @Tags         call
// @Accept       json
// @Produce      json
// @Param        request body InitiateRandomCallRequest false "Optional topic"
// @Success      201 {object} InitiateCallResponse
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /calls/random [post]
// @Security     BearerAuth
func (h *CallHandler) InitiateRandomCall(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	// Body is optional for random calls
	var req InitiateRandomCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topicID, ok := parseOptionalUUID(req.TopicID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid topic ID"})
		return
	}

	call, callee, err := h.callService.InitiateRandom(c.Request.Context(), userID, topicID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, InitiateCallResponse{
		Call:   ToCallResponse(call),
		Callee: ToCalleeInfo(callee),
	})
}

// RespondCall godoc
// @Summary      Respond to a call invitation
// @Description  Accepts or rejects an invitation; only the callee may respond
// @Tags         call
// @Accept       json
// @Produce      json
// @Param        callId path string true "Call ID"
// @Param        request body RespondCallRequest true "Accept flag"
// @Success      200 {object} CallResponse
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /calls/{callId}/respond [post]
// @Security     BearerAuth
func (h *CallHandler) RespondCall(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid call ID"})
		return
	}

	var req RespondCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := h.callService.Respond(c.Request.Context(), userID, callID, *req.Accept)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ToCallResponse(call))
}

// EndCall godoc
// @Summary      End a call
// @Description  Finishes a call from either participant and records its duration
// @Tags         call
// @Accept       json
// @Produce      json
// @Param        callId path string true "Call ID"
// @Param        request body EndCallRequest false "Optional end reason"
// @Success      200 {object} CallResponse
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /calls/{callId}/end [post]
// @Security     BearerAuth
func (h *CallHandler) EndCall(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid call ID"})
		return
	}

	var req EndCallRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	call, err := h.callService.End(c.Request.Context(), userID, callID, req.Reason)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ToCallResponse(call))
}

// RateCall godoc
// @Summary      Rate a call
// @Description  Stores a 1-5 rating from a participant
// @Tags         call
// @Accept       json
// @Produce      json
// @Param        callId path string true "Call ID"
// @Param        request body RateCallRequest true "Rating"
// @Success      200 {object} map[string]int
// @Failure      400 {object} map[string]string
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Router       /calls/{callId}/rate [post]
// @Security     BearerAuth
func (h *CallHandler) RateCall(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid call ID"})
		return
	}

	var req RateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.callService.Rate(c.Request.Context(), userID, callID, req.Rating); err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rating": req.Rating})
}

// GetCallHistory godoc
// @Summary      Fetch call history
// @Description  Returns the caller's calls, newest first
// @Tags         call
// @Produce      json
// @Param        limit query int false "Page size" default(20)
// @Param        offset query int false "Page offset" default(0)
// @Success      200 {object} CallHistoryResponse
// @Failure      401 {object} map[string]string
// @Router       /calls/history [get]
// @Security     BearerAuth
func (h *CallHandler) GetCallHistory(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	calls, total, err := h.callService.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, CallHistoryResponse{
		Calls:  ToCallResponses(calls),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetMediaToken godoc
// @Summary      Issue a media room token
// @Description  Issues a short-lived media credential for an accepted call's room
// @Tags         call
// @Produce      json
// @Param        callId path string true "Call ID"
// @Success      200 {object} MediaTokenResponse
// @Failure      401 {object} map[string]string
// @Failure      404 {object} map[string]string
// @Failure      409 {object} map[string]string
// @Router       /calls/{callId}/token [get]
// @Security     BearerAuth
func (h *CallHandler) GetMediaToken(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	callID, err := uuid.Parse(c.Param("callId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid call ID"})
		return
	}

	token, wsURL, err := h.callService.MediaToken(c.Request.Context(), userID, callID, middleware.GetToken(c))
	if err != nil {
		respondServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MediaTokenResponse{
		Token: token,
		WSUrl: wsURL,
	})
}

// parseOptionalUUID parses a nullable uuid string; ok is false only on a
// present-but-invalid value.
func parseOptionalUUID(s *string) (*uuid.UUID, bool) {
	if s == nil || *s == "" {
		return nil, true
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, false
	}
	return &id, true
}
