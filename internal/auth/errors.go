package auth

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the parent of every token verification failure.
var ErrInvalidToken = errors.New("invalid token")

// Token verification failures. All of them wrap ErrInvalidToken.
var (
	ErrTokenMalformed = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenTampered  = fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	ErrTokenExpired   = fmt.Errorf("%w: expired", ErrInvalidToken)
)

var (
	// ErrForbidden is returned when no single role of the caller grants the
	// required operations.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidGrant is returned when a new identity asks for no role or for a
	// role the permission model does not know.
	ErrInvalidGrant = errors.New("invalid role grant")

	// ErrIdentityNotFound is returned by IdentityLookup implementations.
	ErrIdentityNotFound = errors.New("identity not found")
)

// Configuration errors. These are fatal at startup.
var (
	ErrMissingSecret        = errors.New("auth: signing secret is required")
	ErrUnsupportedAlgorithm = errors.New("auth: unsupported signing algorithm")
)

// Password errors.
var (
	ErrEmptyPassword   = errors.New("auth: password is empty")
	ErrPasswordTooLong = errors.New("auth: password exceeds 72 bytes")
)
