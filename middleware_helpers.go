package auth

import (
	"context"

	"github.com/goliatone/go-admin-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// PrincipalEnricher stores the principal of verified claims in the request
// context, where PrincipalFromContext finds it.
func PrincipalEnricher(c context.Context, claims jwtware.AuthClaims) context.Context {
	if claims == nil {
		return c
	}
	return WithPrincipal(c, Principal{ID: claims.UserID(), Email: claims.Email()})
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	for _, l := range listeners {
		if l != nil {
			cfg.ValidationListeners = append(cfg.ValidationListeners, l)
		}
	}
}
