package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error envelope shared by all non-stream
// endpoints.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

// RespondWithError sends a standardized error response.
func RespondWithError(c *gin.Context, statusCode int, errorCode, message string, details any) {
	c.JSON(statusCode, ErrorResponse{
		ErrorCode: errorCode,
		Message:   message,
		Details:   details,
	})
}

// RespondWithBadRequest sends a 400 Bad Request error.
func RespondWithBadRequest(c *gin.Context, message string, details any) {
	RespondWithError(c, http.StatusBadRequest, "bad_request", message, details)
}

// RespondWithNotFound sends a 404 Not Found error.
func RespondWithNotFound(c *gin.Context, message string) {
	RespondWithError(c, http.StatusNotFound, "not_found", message, nil)
}

// RespondWithPayloadTooLarge sends a 413 when an upload exceeds the size
// limit.
func RespondWithPayloadTooLarge(c *gin.Context, message string) {
	RespondWithError(c, http.StatusRequestEntityTooLarge, "payload_too_large", message, nil)
}

// RespondWithInternalError sends a 500 Internal Server Error.
func RespondWithInternalError(c *gin.Context, message string, details any) {
	RespondWithError(c, http.StatusInternalServerError, "internal_error", message, details)
}
