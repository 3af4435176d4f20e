package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"movieweb/config"
	"movieweb/db"
	"movieweb/models"
	"movieweb/utils"
)

var (
	errMissingValue   = errors.New("value is required")
	errYearOutOfRange = errors.New("year is out of range")
)

// --- Add Movie ---

// AddMovieRequest is the JSON body for adding a movie. Year and rating may be
// sent as numbers or numeric strings.
type AddMovieRequest struct {
	Name     string `json:"name" example:"The Matrix"`
	Director string `json:"director" example:"Lana Wachowski, Lilly Wachowski"`
	Year     any    `json:"year" swaggertype:"integer" example:"1999"`
	Rating   any    `json:"rating" swaggertype:"number" example:"8.7"`
}

// AddMovieResponse is returned after a movie was added through JSON.
type AddMovieResponse struct {
	Message string       `json:"Message"`
	Movie   models.Movie `json:"movie"`
}

// AddMovieFormHandler renders the add-movie form for an existing user.
func AddMovieFormHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	user, ok := lookupUser(c, store)
	if !ok {
		return
	}
	renderPage(c, "add_movie.html", gin.H{"Title": "Add movie", "User": user})
}

// AddMovieHandler adds a movie to a user's favorites.
// @Summary      Add a Movie
// @Description  Adds a movie to the user's list. Poster, actors and plot are looked up on OMDb by title; when the lookup fails they are stored as `N/A`.
// @Description  Movie names are unique per user, ignoring case.
// @Tags         Movies
// @Accept       json,x-www-form-urlencoded
// @Produce      json,html
// @Param        user_id  path  string           true  "User ID"
// @Param        movie    body  AddMovieRequest  true  "The movie to add."
// @Success      201  {object}  AddMovieResponse
// @Success      302  "Redirect to the user's movies (form posts)"
// @Failure      400  {object}  utils.APIError "Bad Request: missing name, unparsable year or rating, or a movie with this name already exists."
// @Failure      404  {object}  utils.APIError "Not Found: no user with this ID."
// @Failure      500  {object}  utils.APIError "Internal Server Error: the movie could not be saved."
// @Router       /users/{user_id}/add_movie [post]
func AddMovieHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	userID := c.Param("user_id")

	var req AddMovieRequest
	if utils.IsJSONRequest(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.GinBadRequest(c, "Invalid request body: "+err.Error())
			return
		}
	} else {
		req = AddMovieRequest{
			Name:     c.PostForm("name"),
			Director: c.PostForm("director"),
			Year:     formValue(c, "year"),
			Rating:   formValue(c, "rating"),
		}
	}

	v := utils.NewValidator()
	year, yearErr := parseYear(req.Year)
	rating, ratingErr := parseRating(req.Rating)
	v.Check(!errors.Is(yearErr, errMissingValue) && !errors.Is(ratingErr, errMissingValue),
		"year_rating", "Year and Rating are required fields")
	v.Check(!errors.Is(yearErr, errYearOutOfRange), "year", "Year is out of range")
	v.Check(yearErr == nil || errors.Is(yearErr, errMissingValue), "year", "Year must be a whole number")
	v.Check(ratingErr == nil || errors.Is(ratingErr, errMissingValue), "rating", "Rating must be a number")
	if !v.Valid() {
		utils.GinBadRequest(c, v.Error())
		return
	}

	movie, err := store.AddMovie(c.Request.Context(), userID, req.Name, req.Director, year, rating)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	message := "Movie added successfully!"
	if utils.IsJSONRequest(c) {
		c.JSON(http.StatusCreated, AddMovieResponse{Message: message, Movie: movie})
		return
	}
	redirectWithFlash(c, "success", message, userMoviesPath(userID))
}

// formValue returns the posted value, or nil when the field was not sent.
func formValue(c *gin.Context, key string) any {
	if v, ok := c.GetPostForm(key); ok {
		return v
	}
	return nil
}

func parseYear(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, errMissingValue
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("%v is not a whole number", x)
		}
		if x < math.MinInt32 || x > math.MaxInt32 {
			return 0, errYearOutOfRange
		}
		return int(x), nil
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, errMissingValue
		}
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, err
		}
		return n, checkYear(n)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

// checkYear keeps years within int32 so every backend stores them unchanged.
func checkYear(n int) error {
	if n < math.MinInt32 || n > math.MaxInt32 {
		return errYearOutOfRange
	}
	return nil
}

func parseRating(v any) (float64, error) {
	var rating float64
	switch x := v.(type) {
	case nil:
		return 0, errMissingValue
	case float64:
		rating = x
	case string:
		x = strings.TrimSpace(x)
		if x == "" {
			return 0, errMissingValue
		}
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, err
		}
		rating = f
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(rating) || math.IsInf(rating, 0) {
		return 0, fmt.Errorf("%v is not a finite number", rating)
	}
	return rating, nil
}

// --- Update Movie ---

// UpdateMovieFormHandler renders the edit form pre-filled with the movie.
func UpdateMovieFormHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	user, ok := lookupUser(c, store)
	if !ok {
		return
	}
	movie, ok := user.Movies[c.Param("movie_id")]
	if !ok {
		utils.GinNotFound(c, "Movie not found")
		return
	}
	renderPage(c, "update_movie.html", gin.H{"Title": "Edit " + movie.Name, "User": user, "Movie": movie})
}

// UpdateMovieHandler applies a partial update to a movie.
// @Summary      Update a Movie
// @Description  Changes only the fields present in the request. Empty form fields are left unchanged.
// @Tags         Movies
// @Accept       json,x-www-form-urlencoded
// @Produce      json,html
// @Param        user_id   path  string             true  "User ID"
// @Param        movie_id  path  string             true  "Movie ID"
// @Param        patch     body  models.MoviePatch  true  "Fields to change."
// @Success      200  {object}  MessageResponse
// @Success      302  "Redirect to the user's movies (form posts)"
// @Failure      400  {object}  utils.APIError "Bad Request: unparsable data, empty name or duplicate name."
// @Failure      404  {object}  utils.APIError "Not Found: no such user or movie."
// @Failure      500  {object}  utils.APIError
// @Router       /users/{user_id}/update_movie/{movie_id} [post]
func UpdateMovieHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	userID := c.Param("user_id")
	movieID := c.Param("movie_id")

	var patch models.MoviePatch
	if utils.IsJSONRequest(c) {
		if err := c.ShouldBindJSON(&patch); err != nil {
			utils.GinBadRequest(c, fmt.Sprintf("Error parsing data: %v", err))
			return
		}
	} else {
		var err error
		patch, err = patchFromForm(c)
		if err != nil {
			utils.GinBadRequest(c, fmt.Sprintf("Error parsing data: %v", err))
			return
		}
	}
	if patch.Year != nil {
		if err := checkYear(*patch.Year); err != nil {
			utils.GinBadRequest(c, fmt.Sprintf("Error parsing data: %v", err))
			return
		}
	}
	if patch.Rating != nil && (math.IsNaN(*patch.Rating) || math.IsInf(*patch.Rating, 0)) {
		utils.GinBadRequest(c, "Error parsing data: rating is not a finite number")
		return
	}
	if patch.IsEmpty() {
		utils.GinBadRequest(c, "No fields to update")
		return
	}

	ok, err := store.UpdateMovie(userID, movieID, patch)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		utils.GinNotFound(c, "Failed to update movie details")
		return
	}

	message := "Movie updated successfully!"
	if utils.IsJSONRequest(c) {
		c.JSON(http.StatusOK, MessageResponse{Message: message})
		return
	}
	redirectWithFlash(c, "success", message, userMoviesPath(userID))
}

// patchFromForm builds a patch from the non-empty form fields.
func patchFromForm(c *gin.Context) (models.MoviePatch, error) {
	var patch models.MoviePatch
	text := func(key string) *string {
		if v := strings.TrimSpace(c.PostForm(key)); v != "" {
			return &v
		}
		return nil
	}
	patch.Name = text("name")
	patch.Director = text("director")
	patch.Poster = text("poster")
	patch.Actors = text("actors")
	patch.Plot = text("plot")

	if raw := text("year"); raw != nil {
		year, err := strconv.Atoi(*raw)
		if err != nil {
			return patch, fmt.Errorf("year %q is not a whole number", *raw)
		}
		patch.Year = &year
	}
	if raw := text("rating"); raw != nil {
		rating, err := strconv.ParseFloat(*raw, 64)
		if err != nil {
			return patch, fmt.Errorf("rating %q is not a number", *raw)
		}
		patch.Rating = &rating
	}
	return patch, nil
}

// --- Delete Movie ---

// DeleteMovieHandler removes a movie from a user's list.
// @Summary      Delete a Movie
// @Tags         Movies
// @Produce      json,html
// @Param        user_id   path  string  true  "User ID"
// @Param        movie_id  path  string  true  "Movie ID"
// @Success      200  {object}  MessageResponse
// @Success      302  "Redirect to the user's movies (form posts)"
// @Failure      404  {object}  utils.APIError "Not Found: no such user or movie."
// @Failure      500  {object}  utils.APIError
// @Router       /users/{user_id}/delete_movie/{movie_id} [post]
func DeleteMovieHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	userID := c.Param("user_id")

	ok, err := store.DeleteMovie(userID, c.Param("movie_id"))
	if err != nil {
		respondStoreError(c, err)
		return
	}
	if !ok {
		utils.GinNotFound(c, "Movie not found")
		return
	}

	message := "Movie deleted successfully!"
	if utils.WantsJSON(c) {
		c.JSON(http.StatusOK, MessageResponse{Message: message})
		return
	}
	redirectWithFlash(c, "success", message, userMoviesPath(userID))
}

// --- All Movies ---

// MovieListResponse is one page of the movie list.
type MovieListResponse struct {
	Data       []db.UserMovie `json:"data"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Total      int            `json:"total"`
}

// ListMoviesHandler shows every user's movies, paginated and optionally filtered.
// @Summary      List All Movies
// @Description  Lists the movies of all users, ordered by user ID and then movie name.
// @Description
// @Description  `filter` takes conditions of the form `field operator value`, joined by `and`/`or` and evaluated left to right.
// @Description  Fields: `id`, `name`, `director`, `year`, `rating`, `poster`, `actors`, `plot`.
// @Description  Operators: `equals`, `notequals`, `greaterthan`, `lessthan`, `greaterthanorequals`, `lessthanorequals`, `contains`, `startswith`, `endswith`. The text operators accept a `-insensitive` suffix.
// @Description  Either send the whole expression in one parameter (`?filter=year greaterthan 1990 and director contains Nolan`) or one part per parameter.
// @Tags         Movies
// @Produce      html,json
// @Param        page    query  int       false  "Page number, starting at 1." minimum(1) default(1)
// @Param        filter  query  []string  false  "Filter expression." collectionFormat(multi) example(rating greaterthan 8)
// @Success      200  {object}  MovieListResponse
// @Failure      400  {object}  utils.APIError "Bad Request: the filter is invalid."
// @Failure      500  {object}  utils.APIError
// @Router       /movies [get]
func ListMoviesHandler(c *gin.Context, store db.DataManager, cfg *config.Config) {
	doc, err := store.GetAllUsers()
	if err != nil {
		respondStoreError(c, err)
		return
	}

	parts := c.QueryArray("filter")
	filterText := strings.TrimSpace(strings.Join(parts, " "))
	if len(parts) == 1 {
		parts = db.SplitFilterExpression(parts[0])
	}
	filter, err := db.ParseMovieFilter(parts)
	if err != nil {
		respondStoreError(c, err)
		return
	}
	items, err := db.FilterMovies(db.FlattenMovies(doc), filter)
	if err != nil {
		respondStoreError(c, err)
		return
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = db.DefaultPageSize
	}
	page := db.ParsePage(c.Query("page"))
	pageItems, totalPages := db.Paginate(items, page, pageSize)
	if filter == nil {
		totalPages = db.CalculateTotalPages(doc, pageSize)
	}

	if utils.WantsJSON(c) {
		c.JSON(http.StatusOK, MovieListResponse{
			Data:       pageItems,
			Page:       page,
			PageSize:   pageSize,
			TotalPages: totalPages,
			Total:      len(items),
		})
		return
	}

	prev, next := 0, 0
	if page > 1 {
		prev = page - 1
	}
	if page < totalPages {
		next = page + 1
	}
	renderPage(c, "movies.html", gin.H{
		"Title":      "All movies",
		"Movies":     pageItems,
		"Page":       page,
		"TotalPages": totalPages,
		"PrevPage":   prev,
		"NextPage":   next,
		"Filter":     filterText,
	})
}
