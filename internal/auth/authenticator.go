package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Identity is what the login flow needs to know about a stored account.
type Identity struct {
	Subject      string
	Roles        []Role
	PasswordHash string
}

// IdentityLookup resolves a username to its stored identity. Implementations
// return ErrIdentityNotFound when no account matches.
type IdentityLookup interface {
	IdentityByUsername(ctx context.Context, username string) (Identity, error)
}

// PasswordRehasher is optionally implemented by an IdentityLookup that can
// store upgraded password hashes.
type PasswordRehasher interface {
	UpdatePasswordHash(ctx context.Context, subject, hash string) error
}

// Session is the result of a successful login.
type Session struct {
	Token  string
	Claims Claims
}

// Authenticator composes hashing, tokens and authorization into the calls the
// request layer makes.
type Authenticator struct {
	hasher    *PasswordHasher
	tokens    *TokenService
	engine    *Engine
	lookup    IdentityLookup
	logger    *slog.Logger
	now       func() time.Time
	dummyHash string
}

// Option customizes an Authenticator.
type Option func(*Authenticator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

// WithLogger sets the logger used for non-fatal login side effects.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		a.logger = logger
	}
}

// NewAuthenticator wires the auth components together.
func NewAuthenticator(
	hasher *PasswordHasher,
	tokens *TokenService,
	engine *Engine,
	lookup IdentityLookup,
	opts ...Option,
) (*Authenticator, error) {
	a := &Authenticator{
		hasher: hasher,
		tokens: tokens,
		engine: engine,
		lookup: lookup,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	// Compared against on unknown usernames so both failure paths cost one
	// bcrypt comparison.
	dummy, err := hasher.Hash("marquee-unknown-user")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy hash: %w", err)
	}
	a.dummyHash = dummy

	return a, nil
}

// Engine returns the authorization engine.
func (a *Authenticator) Engine() *Engine {
	return a.engine
}

// Login checks username and password and issues an access token. Unknown
// users and wrong passwords both yield ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, username, password string) (Session, error) {
	identity, err := a.lookup.IdentityByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			a.hasher.Verify(password, a.dummyHash)
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("looking up identity: %w", err)
	}

	if !a.hasher.Verify(password, identity.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}

	if a.hasher.NeedsRehash(identity.PasswordHash) {
		a.rehash(ctx, identity.Subject, password)
	}

	now := a.now()
	token, err := a.tokens.Issue(identity.Subject, identity.Roles, now)
	if err != nil {
		return Session{}, err
	}
	claims, err := a.tokens.Verify(token, now)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Claims: claims}, nil
}

// Authenticate verifies token without checking any operation.
func (a *Authenticator) Authenticate(token string) (Claims, error) {
	return a.tokens.Verify(token, a.now())
}

// AuthorizeRequest verifies token and checks that one of its roles grants
// every operation in required. On ErrForbidden the verified claims are still
// returned so the caller can record who was denied.
func (a *Authenticator) AuthorizeRequest(token string, required OperationSet) (Claims, error) {
	claims, err := a.tokens.Verify(token, a.now())
	if err != nil {
		return Claims{}, err
	}
	if _, err := a.engine.Authorize(claims, required); err != nil {
		return claims, err
	}
	return claims, nil
}

// AuthorizeGrant checks that the verified caller may create an identity
// holding roles.
func (a *Authenticator) AuthorizeGrant(claims Claims, roles []Role) error {
	return a.engine.AuthorizeGrant(claims, roles)
}

// IssueCredential hashes password for a new account.
func (a *Authenticator) IssueCredential(password string) (string, error) {
	return a.hasher.Hash(password)
}

func (a *Authenticator) rehash(ctx context.Context, subject, password string) {
	store, ok := a.lookup.(PasswordRehasher)
	if !ok {
		return
	}
	hash, err := a.hasher.Hash(password)
	if err != nil {
		a.logger.WarnContext(ctx, "password rehash failed", "sub", subject, "err", err)
		return
	}
	if err := store.UpdatePasswordHash(ctx, subject, hash); err != nil {
		a.logger.WarnContext(ctx, "storing rehashed password failed", "sub", subject, "err", err)
	}
}
