package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"movieweb/config"
	"movieweb/db"
	"movieweb/models"
	"movieweb/utils"
)

// --- List Users ---

// ListUsersHandler shows every user ordered by ID.
// @Summary      List Users
// @Description  Renders the list of users with links to their movies. Send `Accept: application/json` to get the users as a JSON array instead.
// @Tags         Users
// @Produce      html,json
// @Success      200  {array}   models.User "The users, ordered by numeric ID."
// @Failure      500  {object}  utils.APIError "Internal Server Error: the store could not be read."
// @Router       /users [get]
func ListUsersHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	doc, err := store.GetAllUsers()
	if err != nil {
		respondStoreError(c, err)
		return
	}
	users := db.SortedUsers(doc)

	if utils.WantsJSON(c) {
		c.JSON(http.StatusOK, users)
		return
	}
	renderPage(c, "list_of_users.html", gin.H{"Title": "Users", "Users": users})
}

// --- Movies of a user (JSON) ---

// MoviesByUserHandler returns the user's movies keyed by movie ID.
// @Summary      Get a User's Movies
// @Description  Returns the movies of one user as a JSON object keyed by movie ID. An unknown user yields an empty object.
// @Tags         Users
// @Produce      json
// @Param        user_id  path  string  true  "User ID" example(1)
// @Success      200  {object}  map[string]models.Movie
// @Failure      500  {object}  utils.APIError
// @Router       /movies_by_user/{user_id} [get]
func MoviesByUserHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	movies, err := store.GetUserMovies(c.Param("user_id"))
	if err != nil {
		utils.GinError(c, http.StatusInternalServerError, "An error occurred: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, movies)
}

// --- Add User ---

// AddUserRequest is the JSON body for creating a user.
type AddUserRequest struct {
	Name string `json:"name" example:"Alice"`
}

// AddUserResponse is returned after a user was created through JSON.
type AddUserResponse struct {
	Message string      `json:"message"`
	User    models.User `json:"user"`
}

// AddUserFormHandler renders the add-user form.
func AddUserFormHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	renderPage(c, "add_user.html", gin.H{"Title": "Add user"})
}

// AddUserHandler creates a user from a form post or a JSON body.
// @Summary      Add a User
// @Description  Creates a user with the next numeric ID. Form posts are redirected to `/users` with a flash message; JSON requests get the new user back.
// @Tags         Users
// @Accept       json,x-www-form-urlencoded
// @Produce      json,html
// @Param        user  body  AddUserRequest  true  "The user's name."
// @Success      201  {object}  AddUserResponse
// @Success      302  "Redirect to /users (form posts)"
// @Failure      400  {object}  utils.APIError "Bad Request: the name is missing."
// @Failure      500  {object}  utils.APIError "Internal Server Error: the user could not be saved."
// @Router       /add_user [post]
func AddUserHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	var name string
	if utils.IsJSONRequest(c) {
		var req AddUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.GinBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		name = req.Name
	} else {
		name = c.PostForm("name")
	}

	v := utils.NewValidator()
	v.Check(strings.TrimSpace(name) != "", "name", "User name is required")
	if !v.Valid() {
		utils.GinBadRequest(c, v.Error())
		return
	}

	user, err := store.AddUser(name)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	message := db.AddUserMessage(user)
	if utils.IsJSONRequest(c) {
		c.JSON(http.StatusCreated, AddUserResponse{Message: message, User: user})
		return
	}
	redirectWithFlash(c, "success", message, "/users")
}

// --- Update / Delete User ---

// UpdateUserHandler renames a user.
// @Summary      Rename a User
// @Tags         Users
// @Accept       json,x-www-form-urlencoded
// @Produce      json,html
// @Param        user_id  path  string          true  "User ID"
// @Param        user     body  AddUserRequest  true  "The new name."
// @Success      200  {object}  MessageResponse
// @Failure      400  {object}  utils.APIError
// @Failure      404  {object}  utils.APIError "Not Found: no user with this ID."
// @Failure      500  {object}  utils.APIError
// @Router       /users/{user_id}/update [post]
func UpdateUserHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	userID := c.Param("user_id")

	var name string
	if utils.IsJSONRequest(c) {
		var req AddUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.GinBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		name = req.Name
	} else {
		name = c.PostForm("name")
	}

	ok, err := store.UpdateUser(userID, name)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		utils.GinNotFound(c, "User not found")
		return
	}

	message := "User renamed successfully!"
	if utils.IsJSONRequest(c) {
		c.JSON(http.StatusOK, MessageResponse{Message: message})
		return
	}
	redirectWithFlash(c, "success", message, "/users")
}

// DeleteUserHandler removes a user and all their movies.
// @Summary      Delete a User
// @Tags         Users
// @Produce      json,html
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  MessageResponse
// @Failure      404  {object}  utils.APIError "Not Found: no user with this ID."
// @Failure      500  {object}  utils.APIError
// @Router       /users/{user_id}/delete [post]
func DeleteUserHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	ok, err := store.DeleteUser(c.Param("user_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		utils.GinNotFound(c, "User not found")
		return
	}

	message := "User deleted successfully!"
	if utils.WantsJSON(c) {
		c.JSON(http.StatusOK, MessageResponse{Message: message})
		return
	}
	redirectWithFlash(c, "success", message, "/users")
}

// --- User page ---

// UserMoviesHandler renders one user's movies.
// @Summary      Show a User's Movies
// @Description  Renders the movies of one user ordered by name. Send `Accept: application/json` to get the user as JSON.
// @Tags         Users
// @Produce      html,json
// @Param        user_id  path  string  true  "User ID"
// @Success      200  {object}  models.User
// @Failure      404  {object}  utils.APIError "Not Found: no user with this ID."
// @Router       /users/{user_id}/movies [get]
func UserMoviesHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	user, ok := lookupUser(c, store)
	if !ok {
		return
	}

	if utils.WantsJSON(c) {
		c.JSON(http.StatusOK, user)
		return
	}
	movies, err := store.ListMovies(user.ID)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	renderPage(c, "user_movies.html", gin.H{
		"Title":  user.Name,
		"User":   user,
		"Movies": movies,
	})
}

// lookupUser loads the user named by the user_id path parameter, responding
// with 404 (or 500) when it cannot.
func lookupUser(c *gin.Context, store db.DataManager) (models.User, bool) {
	doc, err := store.GetAllUsers()
	if err != nil {
		respondStoreError(c, err)
		return models.User{}, false
	}
	user, ok := doc[c.Param("user_id")]
	if !ok {
		utils.GinNotFound(c, "User not found")
		return models.User{}, false
	}
	return user, true
}
