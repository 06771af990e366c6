package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/prepstack/practice-service/internal/services"
	"github.com/prepstack/practice-service/internal/utils"
	"github.com/prepstack/practice-service/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService    services.AttemptService
	submissionService services.SubmissionService
	validator         *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	submissionService services.SubmissionService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:       NewBaseHandler(logger),
		attemptService:    attemptService,
		submissionService: submissionService,
		validator:         validator,
	}
}

// CreateAttempt starts a new test attempt from an exam, paper or question list
func (h *AttemptHandler) CreateAttempt(c *gin.Context) {
	h.LogRequest(c, "Creating test attempt")

	var req services.CreateAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	attempt, err := h.attemptService.Create(c.Request.Context(), &req, callerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Attempt created successfully",
		Data:    attempt,
	})
}

// GetAttempt returns one attempt with its questions
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	h.LogRequest(c, "Getting test attempt")

	attempt, err := h.attemptService.Get(c.Request.Context(), c.Param("id"), callerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt retrieved successfully",
		Data:    attempt,
	})
}

// SaveAnswer records or clears an answer for one question of an attempt
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	h.LogRequest(c, "Saving answer")

	questionID, err := strconv.ParseUint(c.Param("question_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question ID",
		})
		return
	}

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), c.Param("id"), uint(questionID), &req, callerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Answer saved successfully",
	})
}

// SubmitAttempt grades the attempt and finalizes it
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	h.LogRequest(c, "Submitting test attempt")

	result, err := h.submissionService.Submit(c.Request.Context(), c.Param("id"), callerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt submitted successfully",
		Data:    result,
	})
}

// DeleteAttempt removes an attempt and its answers
func (h *AttemptHandler) DeleteAttempt(c *gin.Context) {
	h.LogRequest(c, "Deleting test attempt")

	if err := h.attemptService.Delete(c.Request.Context(), c.Param("id"), callerFromContext(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt deleted successfully",
	})
}

// ListAttempts returns the authenticated caller's attempt history
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing test attempts")

	var req services.ListAttemptsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid query parameters",
			Details: err.Error(),
		})
		return
	}

	attempts, err := h.attemptService.ListByOwner(c.Request.Context(), &req, callerFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempts retrieved successfully",
		Data:    attempts,
	})
}

func (h *AttemptHandler) handleServiceError(c *gin.Context, err error) {
	// Handle custom error types first
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Access denied",
			Details: map[string]interface{}{
				"resource": permissionError.Resource,
				"action":   permissionError.Action,
				"reason":   permissionError.Reason,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Attempt not found",
		})
	case errors.Is(err, services.ErrExamNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Exam not found",
		})
	case errors.Is(err, services.ErrPaperNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question paper not found",
		})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Question not found",
		})
	case errors.Is(err, services.ErrEmptyQuestionPool):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "No published questions available for this selection",
		})
	case errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt already submitted",
		})
	case errors.Is(err, services.ErrSubmitConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Attempt is being submitted concurrently, retry shortly",
		})
	case errors.Is(err, services.ErrValidationFailed):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "Authentication required",
		})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Forbidden - insufficient permissions",
		})
	default:
		h.LogError(c, err, "Unexpected service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
