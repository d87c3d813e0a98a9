package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/marquee/apiserver/internal/storage"
	"github.com/marquee/apiserver/internal/store"
	"github.com/marquee/apiserver/types"
)

type memoryMovies struct {
	mu     sync.Mutex
	nextID int
	movies map[int]types.Movie
}

func newMemoryMovies() *memoryMovies {
	return &memoryMovies{movies: map[int]types.Movie{}}
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
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[int]types.User{}}
}

func (m *memoryUsers) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.User{}
	for id := offset + 1; id <= m.nextID && len(out) < limit; id++ {
		if u, ok := m.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, len(m.users), nil
}

func (m *memoryUsers) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
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
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUsers) UpdatePasswordHash(_ context.Context, id int, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}}
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if m.putErr != nil {
		return m.putErr
	}
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

type recordedEvents struct {
	mu     sync.Mutex
	events []types.Event
	err    error
}

func (r *recordedEvents) PublishEvent(_ context.Context, event types.Event) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.events = append(r.events, event)
	return "id", nil
}

func (r *recordedEvents) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

var errBrokerDown = errors.New("broker down")
