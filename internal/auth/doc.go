// Package auth implements authentication and authorization for the marquee API.
//
// It provides bcrypt password hashing, HMAC-signed JWT access tokens, a static
// role to operation permission table and the authorization decision built on it.
//
// A caller is authorized when one of its roles, on its own, grants every
// required operation. Operations granted by different roles are never combined:
// a caller holding "user" and "finops" cannot perform {create, update} even
// though the two roles together cover it.
//
// Every type in this package is immutable after construction and safe for
// concurrent use.
package auth
