package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/minishop-checkout/internal/apperror"
	"github.com/Zhima-Mochi/minishop-checkout/internal/application"
)

// Identity is asserted by the upstream auth layer.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type callerKey struct{}

func callerFromHeaders(r *http.Request) application.Caller {
	c := application.Caller{
		UserID: strings.TrimSpace(r.Header.Get(headerUserID)),
		Role:   application.RoleCustomer,
	}
	if strings.EqualFold(strings.TrimSpace(r.Header.Get(headerUserRole)), string(application.RoleAdmin)) {
		c.Role = application.RoleAdmin
	}
	return c
}

func withCaller(ctx context.Context, c application.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func callerFrom(ctx context.Context) application.Caller {
	c, _ := ctx.Value(callerKey{}).(application.Caller)
	return c
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := callerFromHeaders(r)
		if c.UserID == "" {
			writeAppError(w, r, apperror.New(apperror.KindUnauthorized, "UNAUTHENTICATED", "user identity is required"))
			return
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), c)))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return requireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r.Context()).IsAdmin() {
			writeAppError(w, r, apperror.Forbidden("ADMIN_REQUIRED", "admin role is required"))
			return
		}
		next.ServeHTTP(w, r)
	}))
}
