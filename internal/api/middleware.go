package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/alireza-hadizadeh/socket-app/internal/auth"
	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

type contextKey string

const userKey contextKey = "user"

const sessionCookieKey = "session_token"

func WithUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFrom(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(userKey).(types.User)
	return user, ok
}

func (s *SocketApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Printf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// requestLogger tags each request with a correlation id and logs the
// method and path.
func (s *SocketApp) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := uuid.NewString()
		w.Header().Set("X-Request-Id", reqId)
		s.log.Printf("request %s: %s %s", reqId, r.Method, r.URL.Path)

		next.ServeHTTP(w, r)
	})
}

// sessionMiddleware resolves the session cookie to a user and stores it
// on the request context.
func (s *SocketApp) sessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieKey)
		if err != nil {
			errResp := NewUnauthorizedError("Not authenticated")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		user, err := s.auth.VerifySession(cookie.Value)
		if err != nil {
			s.log.Printf("session verification failed: %v", err)
			errResp := NewUnauthorizedError("")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		ctx := WithUser(r.Context(), user)
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")

		next(w, r.WithContext(ctx))
	}
}

// adminOnly gates a handler behind the admin role. It composes with
// sessionMiddleware, which must run first.
func (s *SocketApp) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return s.sessionMiddleware(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		if !ok || !auth.Authorize(user.Role, types.RoleAdmin) {
			errResp := NewForbiddenError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		next(w, r)
	})
}
