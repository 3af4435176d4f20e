package integration_tests

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"movieweb/api"
	"movieweb/config"
	"movieweb/db"
	"movieweb/metadata"
	"movieweb/models"
	"movieweb/utils"
)

const testSessionSecret = "a-very-secure-secret-for-testing-only"

// newFakeOMDb answers every lookup for "Heat" and reports everything else as not found.
func newFakeOMDb(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !strings.EqualFold(r.URL.Query().Get("t"), "Heat") {
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Movie not found!"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Title":"Heat","Poster":"https://img.example.com/heat.jpg","Actors":"Al Pacino, Robert De Niro","Plot":"A heist crew is hunted.","Response":"True"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// appServer is a running application backed by a real store and a fake OMDb.
type appServer struct {
	URL    string
	Client *http.Client
	Store  db.DataManager
	Config *config.Config
}

func startApp(t *testing.T, backend string) *appServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	omdb := newFakeOMDb(t)

	cfg := &config.Config{
		DataFilePath:  filepath.Join(t.TempDir(), "movies.json"),
		StoreBackend:  backend,
		EnableBackup:  true,
		MovieIDScheme: config.SchemeUUID,
		PageSize:      4,
		OMDbAPIKey:    "test-key",
		OMDbBaseURL:   omdb.URL,
		OMDbTimeout:   2 * time.Second,
		SessionSecret: testSessionSecret,
	}

	store, err := db.New(cfg, metadata.FromConfig(cfg, log), log)
	require.NoError(t, err, "Failed to initialize %s store", backend)

	flash, err := utils.NewFlashStore(cfg.SessionSecret)
	require.NoError(t, err)
	tmpl, err := api.LoadTemplates()
	require.NoError(t, err)

	router := gin.New()
	router.Use(utils.ZapLogger(log), utils.ZapRecovery(log), flash.Middleware())
	router.SetHTMLTemplate(tmpl)
	api.RegisterRoutes(router, store, cfg)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &appServer{
		URL:    srv.URL,
		Client: &http.Client{Jar: jar, Timeout: 10 * time.Second},
		Store:  store,
		Config: cfg,
	}
}

// postForm submits a form and follows the redirect, returning the final page.
func (a *appServer) postForm(t *testing.T, path string, form url.Values) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := a.Client.PostForm(a.URL+path, form)
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return resp, doc
}

func (a *appServer) getPage(t *testing.T, path string) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := a.Client.Get(a.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	return resp, doc
}

func (a *appServer) getJSON(t *testing.T, path string, v any) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp, err := a.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func flashText(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("#flashes .flash").Text())
}

func TestMovieWorkflow(t *testing.T) {
	for _, backend := range []string{config.BackendJSON, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			app := startApp(t, backend)

			// 1. Create a user through the form.
			resp, doc := app.postForm(t, "/add_user", url.Values{"name": {"Alice"}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "/users", resp.Request.URL.Path)
			assert.Equal(t, "User Alice added successfully with ID 1", flashText(doc))
			require.Equal(t, 1, doc.Find("li.user[data-id='1']").Length())

			// The flash is shown once.
			_, doc = app.getPage(t, "/users")
			assert.Empty(t, flashText(doc))

			// 2. Add movies; Heat is known to OMDb, the other is not.
			resp, doc = app.postForm(t, "/users/1/add_movie", url.Values{
				"name": {"Heat"}, "director": {"Michael Mann"}, "year": {"1995"}, "rating": {"8.3"},
			})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "/users/1/movies", resp.Request.URL.Path)
			assert.Equal(t, "Movie added successfully!", flashText(doc))

			_, doc = app.postForm(t, "/users/1/add_movie", url.Values{
				"name": {"Obscure Short"}, "director": {"Nobody"}, "year": {"2001"}, "rating": {"6"},
			})
			assert.Equal(t, []string{"Heat", "Obscure Short"}, doc.Find("li.movie h2.name").Map(func(_ int, s *goquery.Selection) string {
				return s.Text()
			}))
			assert.Equal(t, 1, doc.Find("li.movie img").Length(), "Only the enriched movie has a poster")

			var movies map[string]models.Movie
			app.getJSON(t, "/movies_by_user/1", &movies)
			require.Len(t, movies, 2)
			var heat, obscure models.Movie
			for _, m := range movies {
				if m.Name == "Heat" {
					heat = m
				} else {
					obscure = m
				}
			}
			assert.Len(t, heat.ID, 32)
			assert.Equal(t, "Al Pacino, Robert De Niro", heat.Actors)
			assert.Equal(t, models.NotAvailable, obscure.Poster)
			assert.Equal(t, models.NotAvailable, obscure.Plot)

			// 3. A duplicate name is rejected.
			resp, doc = app.postForm(t, "/users/1/add_movie", url.Values{
				"name": {"HEAT"}, "year": {"1995"}, "rating": {"8"},
			})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, doc.Find(".error-message").Text(), "already in the user's list")

			// 4. Filter the movie list.
			var list api.MovieListResponse
			app.getJSON(t, "/movies?"+url.Values{"filter": {"actors contains-insensitive pacino"}}.Encode(), &list)
			require.Equal(t, 1, list.Total)
			assert.Equal(t, "Heat", list.Data[0].Movie.Name)
			assert.Equal(t, "Alice", list.Data[0].UserName)

			// 5. Update only the rating.
			resp, doc = app.postForm(t, "/users/1/update_movie/"+heat.ID, url.Values{"rating": {"9"}})
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "Movie updated successfully!", flashText(doc))
			app.getJSON(t, "/movies_by_user/1", &movies)
			assert.Equal(t, 9.0, movies[heat.ID].Rating)
			assert.Equal(t, "Michael Mann", movies[heat.ID].Director)

			// 6. Delete a movie, then the user.
			_, doc = app.postForm(t, "/users/1/delete_movie/"+obscure.ID, nil)
			assert.Equal(t, "Movie deleted successfully!", flashText(doc))
			assert.Equal(t, 1, doc.Find("li.movie").Length())

			// 7. The data survives a restart.
			require.NoError(t, app.Store.Close())
			reopened, err := db.New(app.Config, nil, nil)
			require.NoError(t, err)
			all, err := reopened.GetAllUsers()
			require.NoError(t, err)
			require.Contains(t, all, "1")
			assert.Equal(t, movies[heat.ID].Rating, all["1"].Movies[heat.ID].Rating)
			assert.NotContains(t, all["1"].Movies, obscure.ID)
			require.NoError(t, reopened.Close())
		})
	}
}

func TestUserDeletionRemovesMovies(t *testing.T) {
	app := startApp(t, config.BackendJSON)
	t.Cleanup(func() { _ = app.Store.Close() })

	app.postForm(t, "/add_user", url.Values{"name": {"Alice"}})
	app.postForm(t, "/add_user", url.Values{"name": {"Bob"}})
	app.postForm(t, "/users/2/add_movie", url.Values{"name": {"Heat"}, "year": {"1995"}, "rating": {"8.3"}})

	_, doc := app.postForm(t, "/users/2/delete", nil)
	assert.Equal(t, "User deleted successfully!", flashText(doc))
	assert.Equal(t, 1, doc.Find("li.user").Length())

	var list api.MovieListResponse
	resp := app.getJSON(t, "/movies", &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, list.Total)

	// A new user after a deletion reuses max(id)+1.
	_, doc = app.postForm(t, "/add_user", url.Values{"name": {"Carol"}})
	assert.Equal(t, "User Carol added successfully with ID 2", flashText(doc))
}
