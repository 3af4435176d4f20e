package utils

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateDashlessUUID creates a new UUID v4 and returns its string representation
// with all dashes removed.
func GenerateDashlessUUID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")
}

// APIError is a standard structure for returning errors as JSON.
type APIError struct {
	Error string `json:"error"`
}

// IsJSONRequest reports whether the request body is JSON.
func IsJSONRequest(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON
}

// WantsJSON reports whether the client sent JSON or asked for a JSON response.
func WantsJSON(c *gin.Context) bool {
	if IsJSONRequest(c) {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

// GinError sends a JSON error response with a specific status code.
// It logs the error server-side as well.
func GinError(c *gin.Context, statusCode int, message string) {
	logError(c, statusCode, message)
	c.AbortWithStatusJSON(statusCode, APIError{Error: message})
}

// GinErrorPage renders the error template, or JSON when the client speaks JSON.
func GinErrorPage(c *gin.Context, statusCode int, message string) {
	if WantsJSON(c) {
		GinError(c, statusCode, message)
		return
	}
	logError(c, statusCode, message)
	c.HTML(statusCode, "error.html", gin.H{"ErrorMessage": message})
	c.Abort()
}

// GinBadRequest sends a 400 Bad Request error response.
func GinBadRequest(c *gin.Context, message string) {
	GinErrorPage(c, http.StatusBadRequest, message)
}

// GinNotFound sends a 404 Not Found error response.
func GinNotFound(c *gin.Context, message string) {
	GinErrorPage(c, http.StatusNotFound, message)
}

// GinInternalServerError sends a 500 Internal Server Error response.
func GinInternalServerError(c *gin.Context, message string) {
	GinErrorPage(c, http.StatusInternalServerError, message)
}

func logError(c *gin.Context, statusCode int, message string) {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", statusCode),
		zap.String("error", message),
	}
	if statusCode >= http.StatusInternalServerError {
		zap.L().Error("Request failed", fields...)
		return
	}
	zap.L().Info("Request rejected", fields...)
}
