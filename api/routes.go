package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"movieweb/config"
	"movieweb/db"
)

// RegisterRoutes installs every page and JSON endpoint on router.
func RegisterRoutes(router gin.IRouter, store db.DataManager, cfg *config.Config) {
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/users")
	})

	// --- Users ---
	router.GET("/users", func(c *gin.Context) { ListUsersHandler(c, store, cfg) })
	router.GET("/list_of_users", func(c *gin.Context) { ListUsersHandler(c, store, cfg) })
	router.GET("/movies_by_user/:user_id", func(c *gin.Context) { MoviesByUserHandler(c, store, cfg) })
	router.GET("/add_user", func(c *gin.Context) { AddUserFormHandler(c, store, cfg) })
	router.POST("/add_user", func(c *gin.Context) { AddUserHandler(c, store, cfg) })

	userGroup := router.Group("/users/:user_id")
	{
		userGroup.GET("/movies", func(c *gin.Context) { UserMoviesHandler(c, store, cfg) })
		userGroup.POST("/update", func(c *gin.Context) { UpdateUserHandler(c, store, cfg) })
		userGroup.POST("/delete", func(c *gin.Context) { DeleteUserHandler(c, store, cfg) })

		// --- Movies of a user ---
		userGroup.GET("/add_movie", func(c *gin.Context) { AddMovieFormHandler(c, store, cfg) })
		userGroup.POST("/add_movie", func(c *gin.Context) { AddMovieHandler(c, store, cfg) })
		userGroup.GET("/update_movie/:movie_id", func(c *gin.Context) { UpdateMovieFormHandler(c, store, cfg) })
		userGroup.POST("/update_movie/:movie_id", func(c *gin.Context) { UpdateMovieHandler(c, store, cfg) })
		userGroup.POST("/delete_movie/:movie_id", func(c *gin.Context) { DeleteMovieHandler(c, store, cfg) })
	}

	// --- All movies ---
	router.GET("/movies", func(c *gin.Context) { ListMoviesHandler(c, store, cfg) })
}
