package middleware

import (
	"context"
	"errors"
	"net/http"

	"sheet_judge/internal/common"
	"sheet_judge/internal/common/security"
	"sheet_judge/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const PrincipalCtxKey contextKey = "principal"

var (
	errTokenRequired = common.NewError(common.ErrUnauthorized, "Authorization token required")
	errTokenInvalid  = common.NewError(common.ErrUnauthorized, "Invalid or expired token")
	errAdminRequired = common.NewError(common.ErrForbidden, "Admin access required")
)

// Authenticator rejects requests without a valid bearer token. jwtauth.Verifier must run first.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := principalFromToken(r.Context())
		if err != nil {
			if errors.Is(err, jwtauth.ErrNoTokenFound) {
				common.RespondWithServiceError(w, r, errTokenRequired, false)
			} else {
				common.RespondWithServiceError(w, r, errTokenInvalid, false)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// OptionalAuth attaches the caller when a valid token is present and lets anonymous
// requests through.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, err := principalFromToken(r.Context()); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := GetPrincipal(r.Context())
		if !ok || !p.IsAdmin() {
			common.RespondWithServiceError(w, r, errAdminRequired, false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principalFromToken(ctx context.Context) (model.Principal, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return model.Principal{}, err
	}
	if token == nil {
		return model.Principal{}, jwtauth.ErrNoTokenFound
	}
	userID, err := security.GetUserIDFromClaims(claims)
	if err != nil {
		return model.Principal{}, err
	}
	return model.Principal{UserID: userID, Role: security.GetUserRoleFromClaims(claims)}, nil
}

func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, PrincipalCtxKey, p)
}

func GetPrincipal(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(PrincipalCtxKey).(model.Principal)
	return p, ok
}
