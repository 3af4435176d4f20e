package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"movieweb/db"
	"movieweb/utils"
)

// MessageResponse is the JSON body of successful mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondStoreError maps store errors onto HTTP statuses.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		utils.GinNotFound(c, "User not found")
	case errors.Is(err, db.ErrInvalidInput), errors.Is(err, db.ErrDuplicateMovie), errors.Is(err, db.ErrInvalidFilter):
		utils.GinBadRequest(c, err.Error())
	default:
		utils.GinInternalServerError(c, fmt.Sprintf("An error occurred: %v", err))
	}
}

// renderPage renders an HTML page with the pending flash messages.
func renderPage(c *gin.Context, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Flashes"] = utils.PopFlashes(c)
	c.HTML(http.StatusOK, name, data)
}

// redirectWithFlash queues a flash message and sends the browser to location.
func redirectWithFlash(c *gin.Context, category, message, location string) {
	utils.AddFlash(c, category, message)
	c.Redirect(http.StatusFound, location)
}

func userMoviesPath(userID string) string {
	return "/users/" + userID + "/movies"
}
