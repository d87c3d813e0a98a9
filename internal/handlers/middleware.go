package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
)

// Guard turns authorization decisions into HTTP middleware.
type Guard struct {
	authn *auth.Authenticator
}

func NewGuard(authn *auth.Authenticator) *Guard {
	return &Guard{authn: authn}
}

// Require admits requests whose token has a single role granting every op.
func (g *Guard) Require(ops ...auth.Operation) func(http.Handler) http.Handler {
	return g.RequireSet(auth.NewOperationSet(ops...))
}

// RequireSet is Require for a prebuilt operation set such as auth.RootTier().
func (g *Guard) RequireSet(required auth.OperationSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				writeUnauthorized(w, r, err)
				return
			}

			claims, err := g.authn.AuthorizeRequest(token, required)
			if err != nil {
				if errors.Is(err, auth.ErrForbidden) {
					logging.FromContext(r.Context()).WarnContext(r.Context(), "authorization denied",
						"sub", claims.Subject,
						"roles", claims.Roles,
						"required", required.Sorted(),
					)
					writeError(w, http.StatusForbidden, "forbidden")
					return
				}
				writeUnauthorized(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
		})
	}
}

// Authenticated admits any request carrying a valid token.
func (g *Guard) Authenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w, r, err)
			return
		}
		claims, err := g.authn.Authenticate(token)
		if err != nil {
			writeUnauthorized(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
	})
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request, reason error) {
	logging.FromContext(r.Context()).InfoContext(r.Context(), "authentication failed", "reason", reason.Error())
	if errors.Is(reason, auth.ErrInvalidToken) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	} else {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	writeError(w, http.StatusUnauthorized, "unauthorized")
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
