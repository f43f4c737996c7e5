package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// ClientIDKey is the context key for the browser profile ID
	ClientIDKey ContextKey = "client_id"

	// ClientIDHeader names the browser profile explicitly
	ClientIDHeader = "X-Client-ID"

	clientCookie = "client_id"
)

// ClientID identifies the browser profile that owns local state. The header
// wins over the cookie; a profile without either gets a fresh ID in a cookie.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(ClientIDHeader)
		if id == "" {
			if c, err := r.Cookie(clientCookie); err == nil {
				id = c.Value
			}
		}
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookie,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().AddDate(1, 0, 0),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientID extracts the browser profile ID from the request context
func GetClientID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ClientIDKey).(string)
	return id, ok && id != ""
}
