package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-cart-checkout/internal/apperr"
	"github.com/ariefcatur/go-cart-checkout/internal/auth"
)

// Verifier is the authentication oracle.
type Verifier interface {
	Verify(raw string) (auth.Identity, error)
}

func authenticate(v Verifier, r *http.Request) (auth.Identity, error) {
	tok, ok := auth.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return auth.Identity{}, apperr.ErrUnauthorized
	}
	return v.Verify(tok)
}

// RequireCustomer admits callers holding a customer token.
func RequireCustomer(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(v, r)
			if err == nil && !id.IsCustomer() {
				err = apperr.ErrUnauthorized
			}
			if err != nil {
				writeError(w, r, nil, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

// RequireCapability admits merchants whose role grants c: no or bad token
// is 401, a valid token without the capability is 403.
func RequireCapability(v Verifier, c auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticate(v, r)
			if err != nil {
				writeError(w, r, nil, err)
				return
			}
			if !id.IsMerchant() || !id.Role.Can(c) {
				writeError(w, r, nil, apperr.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
		})
	}
}

func customerID(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.CustomerID
}
