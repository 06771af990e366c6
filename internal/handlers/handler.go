package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/prepstack/practice-service/internal/utils"
)

// BaseHandler provides shared logging helpers for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs an incoming request at debug level
func (h *BaseHandler) LogRequest(c *gin.Context, msg string) {
	utils.GetContextLogger(c, h.logger).Debug(msg,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
}

// LogError logs a handler-level error with request context
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string) {
	utils.GetContextLogger(c, h.logger).Error(msg,
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path)
}

// ErrorResponse is the error envelope returned by all handlers
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the success envelope returned by all handlers
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
