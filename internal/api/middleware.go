package api

import (
	"context"
	"net/http"
	"strings"

	"sdata.ir/ai-chat/internal/auth"
)

type contextKey string

const userIDKey contextKey = "userID"

// userIDFromContext returns the verified user id set by the auth
// middleware, or "" for anonymous requests.
func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

func (h *APIHandler) bearerUserID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	userID, err := auth.ValidateToken(tokenString, h.jwtSecret)
	if err != nil {
		return ""
	}

	// A token for a deleted account carries no identity.
	user, err := h.chatService.GetUserByID(r.Context(), userID)
	if err != nil || user == nil {
		return ""
	}
	return user.ID
}

// OptionalAuth attaches the verified user id when a valid token is
// present and lets the request through anonymously otherwise. The
// verified identity shadows any guest id supplied alongside it.
func (h *APIHandler) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := h.bearerUserID(r); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without a valid token.
func (h *APIHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := h.bearerUserID(r)
		if userID == "" {
			respondError(w, http.StatusUnauthorized, "توکن احراز هویت یافت نشد")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}
