package middleware

import (
	"context"
	"net/http"

	"github.com/dastarhan/backend/internal/services/jwttoken"
)

type UserIDKey struct{}

const TokenCookieName = "token"

// Auth rejects requests without a valid token cookie.
func Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		tokenCookie, err := req.Cookie(TokenCookieName)
		if err != nil {
			if err == http.ErrNoCookie {
				resp.WriteHeader(http.StatusUnauthorized)
				return
			}

			resp.WriteHeader(http.StatusInternalServerError)
			return
		}

		userID, err := jwttoken.Parse(tokenCookie.Value)
		if err != nil {
			resp.WriteHeader(http.StatusUnauthorized)
			return
		}

		req = req.WithContext(context.WithValue(req.Context(), UserIDKey{}, userID))

		next.ServeHTTP(resp, req)
	})
}

// OptionalAuth attaches the user id when a valid token cookie is present and
// lets the request through as a guest otherwise. Order creation and status
// polling accept both guests and registered users.
func OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		tokenCookie, err := req.Cookie(TokenCookieName)
		if err == nil {
			if userID, err := jwttoken.Parse(tokenCookie.Value); err == nil {
				req = req.WithContext(context.WithValue(req.Context(), UserIDKey{}, userID))
			}
		}

		next.ServeHTTP(resp, req)
	})
}
