package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/store"
	"github.com/marquee/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePasswordHash(ctx context.Context, id int, hash string) error
}

// NewUser is the input for creating an account.
type NewUser struct {
	Username string
	Password string
	Roles    []auth.Role
	Client   string
}

// UserService encapsulates user use-cases. It also serves as the identity
// source for auth.Authenticator.
type UserService struct {
	repo   UserRepository
	hasher *auth.PasswordHasher
	events EventPublisher
}

// NewUserService constructs a UserService. events may be nil.
func NewUserService(repo UserRepository, hasher *auth.PasswordHasher, events EventPublisher) *UserService {
	return &UserService{repo: repo, hasher: hasher, events: events}
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// GetBySubject resolves a token subject to its user.
func (s *UserService) GetBySubject(ctx context.Context, subject string) (types.User, error) {
	id, err := parseSubject(subject)
	if err != nil {
		return types.User{}, store.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// Create hashes the password and stores a new account. Authorization of the
// requested roles is the caller's job.
func (s *UserService) Create(ctx context.Context, subject string, in NewUser) (types.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Client = strings.TrimSpace(in.Client)
	if in.Username == "" {
		return types.User{}, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if len(in.Roles) == 0 {
		return types.User{}, fmt.Errorf("%w: at least one role is required", ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmptyPassword) || errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return types.User{}, err
	}

	roles := make([]string, 0, len(in.Roles))
	for _, role := range in.Roles {
		roles = append(roles, string(role))
	}

	created, err := s.repo.Create(ctx, types.User{
		Username:     in.Username,
		Roles:        roles,
		Client:       in.Client,
		PasswordHash: hash,
	})
	if err != nil {
		return types.User{}, err
	}

	publish(ctx, s.events, types.Event{
		Type:       types.EventUserCreated,
		Subject:    subject,
		ResourceID: created.ID,
		Data: map[string]any{
			"username": created.Username,
			"roles":    created.Roles,
			"client":   created.Client,
		},
	})
	return created, nil
}

// IdentityByUsername implements auth.IdentityLookup.
func (s *UserService) IdentityByUsername(ctx context.Context, username string) (auth.Identity, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return auth.Identity{}, auth.ErrIdentityNotFound
		}
		return auth.Identity{}, err
	}
	return auth.Identity{
		Subject:      strconv.Itoa(user.ID),
		Roles:        RolesOf(user),
		PasswordHash: user.PasswordHash,
	}, nil
}

// UpdatePasswordHash implements auth.PasswordRehasher.
func (s *UserService) UpdatePasswordHash(ctx context.Context, subject, hash string) error {
	id, err := parseSubject(subject)
	if err != nil {
		return err
	}
	return s.repo.UpdatePasswordHash(ctx, id, hash)
}

// RolesOf converts the stored role names of user.
func RolesOf(user types.User) []auth.Role {
	roles := make([]auth.Role, 0, len(user.Roles))
	for _, role := range user.Roles {
		roles = append(roles, auth.Role(role))
	}
	return roles
}

func parseSubject(subject string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(subject))
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid subject %q", subject)
	}
	return id, nil
}
