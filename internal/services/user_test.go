package services

import (
	"context"
	"strings"
	"testing"

	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/store"
	"github.com/marquee/apiserver/types"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService(events EventPublisher) (*UserService, *memoryUsers) {
	repo := newMemoryUsers()
	return NewUserService(repo, auth.NewPasswordHasher(bcrypt.MinCost), events), repo
}

func TestUserService_Create(t *testing.T) {
	events := &recordedEvents{}
	svc, repo := newTestUserService(events)

	user, err := svc.Create(context.Background(), "1", NewUser{
		Username: "  carol ",
		Password: "s3cret-pass",
		Roles:    []auth.Role{auth.RoleFinops, auth.RoleUser},
		Client:   "acme",
	})
	require.NoError(t, err)
	require.Equal(t, "carol", user.Username)
	require.Equal(t, []string{"finops", "user"}, user.Roles)
	require.Equal(t, "acme", user.Client)
	require.NotEqual(t, "s3cret-pass", repo.users[user.ID].PasswordHash)
	require.True(t, strings.HasPrefix(repo.users[user.ID].PasswordHash, "$2a$"))

	require.Len(t, events.events, 1)
	require.Equal(t, types.EventUserCreated, events.events[0].Type)
	require.NotContains(t, events.events[0].Data, "password_hash")
}

func TestUserService_CreateValidation(t *testing.T) {
	svc, _ := newTestUserService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "1", NewUser{Username: "", Password: "x", Roles: []auth.Role{auth.RoleUser}})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, "1", NewUser{Username: "dave", Password: "x"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Create(ctx, "1", NewUser{Username: "dave", Password: "", Roles: []auth.Role{auth.RoleUser}})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.ErrorIs(t, err, auth.ErrEmptyPassword)

	_, err = svc.Create(ctx, "1", NewUser{Username: "dave", Password: strings.Repeat("a", 73), Roles: []auth.Role{auth.RoleUser}})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestUserService_CreateDuplicate(t *testing.T) {
	svc, _ := newTestUserService(nil)
	in := NewUser{Username: "erin", Password: "pw", Roles: []auth.Role{auth.RoleUser}}

	_, err := svc.Create(context.Background(), "1", in)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), "1", in)
	require.ErrorIs(t, err, store.ErrConflict)
}

func TestUserService_IdentityLookup(t *testing.T) {
	svc, _ := newTestUserService(nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, "1", NewUser{Username: "frank", Password: "pw", Roles: []auth.Role{auth.RoleAdmin}})
	require.NoError(t, err)

	identity, err := svc.IdentityByUsername(ctx, "frank")
	require.NoError(t, err)
	require.Equal(t, "1", identity.Subject)
	require.Equal(t, []auth.Role{auth.RoleAdmin}, identity.Roles)
	require.NotEmpty(t, identity.PasswordHash)

	_, err = svc.IdentityByUsername(ctx, "nobody")
	require.ErrorIs(t, err, auth.ErrIdentityNotFound)

	require.NoError(t, svc.UpdatePasswordHash(ctx, identity.Subject, "new-hash"))
	user, err := svc.GetBySubject(ctx, identity.Subject)
	require.NoError(t, err)
	require.Equal(t, created.ID, user.ID)
	require.Equal(t, "new-hash", user.PasswordHash)

	require.Error(t, svc.UpdatePasswordHash(ctx, "not-a-number", "h"))
	_, err = svc.GetBySubject(ctx, "0")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUserService_LoginThroughAuthenticator(t *testing.T) {
	svc, _ := newTestUserService(nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, "1", NewUser{Username: "gina", Password: "pw", Roles: []auth.Role{auth.RoleUser}})
	require.NoError(t, err)

	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("secret")})
	require.NoError(t, err)
	authn, err := auth.NewAuthenticator(auth.NewPasswordHasher(bcrypt.MinCost), tokens,
		auth.NewEngine(auth.DefaultPermissionModel()), svc)
	require.NoError(t, err)

	session, err := authn.Login(ctx, "gina", "pw")
	require.NoError(t, err)
	require.Equal(t, []auth.Role{auth.RoleUser}, session.Claims.Roles)

	_, err = authn.Login(ctx, "gina", "wrong")
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
}
