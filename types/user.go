package types

import "time"

// User represents an account that can obtain access tokens.
type User struct {
	// ID is the unique identifier of the user. It is also the token subject.
	ID int `json:"id" db:"id"`

	// Username is the unique login name.
	Username string `json:"username" db:"username"`

	// Roles lists the role names granted to the user, in the order they are
	// evaluated during authorization.
	Roles []string `json:"roles" db:"roles"`

	// Client is the free-form client or organisation the account belongs to.
	Client string `json:"client" db:"client"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
