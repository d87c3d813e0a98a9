package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/internal/storage"
	"github.com/marquee/apiserver/internal/store"
	"github.com/marquee/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memoryMovies struct {
	mu     sync.Mutex
	nextID int
	movies map[int]types.Movie
}

func (m *memoryMovies) List(_ context.Context, offset, limit int) ([]types.Movie, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int, 0, len(m.movies))
	for id := range m.movies {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := []types.Movie{}
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.movies[ids[i]])
	}
	return out, len(ids), nil
}

func (m *memoryMovies) Get(_ context.Context, id int) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie, ok := m.movies[id]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	return movie, nil
}

func (m *memoryMovies) Create(_ context.Context, movie types.Movie) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	movie.ID = m.nextID
	m.movies[movie.ID] = movie
	return movie, nil
}

func (m *memoryMovies) Update(_ context.Context, movie types.Movie) (types.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.movies[movie.ID]
	if !ok {
		return types.Movie{}, store.ErrNotFound
	}
	movie.PosterKey = current.PosterKey
	movie.CreatedBy = current.CreatedBy
	m.movies[movie.ID] = movie
	return movie, nil
}

func (m *memoryMovies) SetPosterKey(_ context.Context, id int, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	movie, ok := m.movies[id]
	if !ok {
		return store.ErrNotFound
	}
	movie.PosterKey = key
	m.movies[id] = movie
	return nil
}

func (m *memoryMovies) Delete(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.movies, id)
	return nil
}

type memoryUsers struct {
	mu    sync.Mutex
	users []types.User
}

func (m *memoryUsers) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.User{}
	for i := offset; i < len(m.users) && len(out) < limit; i++ {
		out = append(out, m.users[i])
	}
	return out, len(m.users), nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memoryUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return types.User{}, store.ErrConflict
		}
	}
	user.ID = len(m.users) + 1
	m.users = append(m.users, user)
	return user, nil
}

func (m *memoryUsers) UpdatePasswordHash(_ context.Context, id int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.users {
		if m.users[i].ID == id {
			m.users[i].PasswordHash = hash
			return nil
		}
	}
	return store.ErrNotFound
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAPI struct {
	router  http.Handler
	clock   *testClock
	logs    *bytes.Buffer
	objects *memoryObjects
}

type apiOptions struct {
	withoutPosters bool
	limiter        *LoginLimiter
}

var seedUsers = []struct {
	username string
	roles    []auth.Role
}{
	{"ursula", []auth.Role{auth.RoleUser}},
	{"fiona", []auth.Role{auth.RoleFinops}},
	{"adam", []auth.Role{auth.RoleAdmin}},
	{"rita", []auth.Role{auth.RoleRoot}},
	{"mixed", []auth.Role{auth.RoleUser, auth.RoleFinops}},
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()

	hasher := auth.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:   []byte("handler-test-secret"),
		Lifetime: 300 * time.Second,
	})
	require.NoError(t, err)

	users := services.NewUserService(&memoryUsers{}, hasher, nil)
	for _, seed := range seedUsers {
		_, err := users.Create(context.Background(), "seed", services.NewUser{
			Username: seed.username,
			Password: seed.username + "-pw",
			Roles:    seed.roles,
		})
		require.NoError(t, err)
	}

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	authn, err := auth.NewAuthenticator(hasher, tokens, auth.NewEngine(auth.DefaultPermissionModel()), users,
		auth.WithClock(clock.Now))
	require.NoError(t, err)

	objects := &memoryObjects{objects: map[string][]byte{}}
	var posters services.PosterStore
	if !opts.withoutPosters {
		posters = objects
	}
	movies := services.NewMovieService(&memoryMovies{movies: map[int]types.Movie{}}, posters, nil)

	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	guard := NewGuard(authn)
	authHandler := NewAuthHandler(authn, users, opts.limiter)

	r := chi.NewRouter()
	r.Use(logging.HTTPMiddleware(logger))
	r.Get("/healthz", Healthz)
	r.Route("/token", func(r chi.Router) { TokenRouter(r, authHandler) })
	r.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler, guard) })
	r.Route("/movies", func(r chi.Router) { MovieRouter(r, movies, guard) })
	r.Route("/admin", func(r chi.Router) { AdminRouter(r, users, authn, guard) })

	return &testAPI{router: r, clock: clock, logs: logs, objects: objects}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return a.do(t, method, path, token, body, map[string]string{"Content-Type": "application/json"})
}

func (a *testAPI) token(t *testing.T, username string) string {
	t.Helper()
	form := url.Values{"username": {username}, "password": {username + "-pw"}}
	rec := a.do(t, http.MethodPost, "/token", "", strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
