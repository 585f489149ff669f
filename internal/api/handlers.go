package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/alireza-hadizadeh/socket-app/internal/auth"
	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

const sessionCookieMaxAge = 24 * time.Hour

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SetUserActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

type CreateApiKeyRequest struct {
	KeyName       string `json:"keyName"`
	ExpiresInDays int    `json:"expiresInDays"`
}

func (s *SocketApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *SocketApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError("Email and password are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, token, err := s.auth.Authenticate(req.Email, req.Password)
	if err != nil {
		var errResp *ApiError
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrAccountInactive):
			errResp = NewUnauthorizedError(err.Error())
		default:
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	http.SetCookie(w, sessionCookie(token, sessionCookieMaxAge))
	s.writeJson(w, http.StatusOK, user)
}

func sessionCookie(token string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieKey,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(maxAge),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

func (s *SocketApp) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieKey); err == nil {
		s.auth.Logout(cookie.Value)
	}

	// expire the cookie regardless of whether a session row existed
	http.SetCookie(w, sessionCookie("", -time.Hour))
	w.WriteHeader(http.StatusNoContent)
}

func (s *SocketApp) me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFrom(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, user)
}

func (s *SocketApp) listApiKeys(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	keys, err := s.auth.ListAPIKeys(user.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"apiKeys": keys})
}

func (s *SocketApp) createApiKey(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req CreateApiKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.KeyName == "" {
		errResp := NewBadRequestError("Key name is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInDays > 0 {
		t := time.Now().UTC().AddDate(0, 0, req.ExpiresInDays)
		expiresAt = &t
	}

	key, err := s.auth.IssueAPIKey(user.Id, req.KeyName, expiresAt)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]any{
		"apiKey":  key,
		"message": "API key created successfully. Save it now - you won't see it again!",
	})
}

func (s *SocketApp) revokeApiKey(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	revoked, err := s.auth.RevokeAPIKey(id, user.Id)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !revoked {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *SocketApp) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"users": users})
}

func (s *SocketApp) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.Username == "" || req.Email == "" || req.Password == "" {
		errResp := NewBadRequestError("Username, email, and password are required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	role := types.Role(req.Role)
	if role == "" {
		role = types.RoleClient
	}
	if role != types.RoleAdmin && role != types.RoleClient {
		errResp := NewBadRequestError("Invalid role. Must be 'admin' or 'client'")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.auth.CreateUser(req.Username, req.Email, req.Password, role)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, auth.ErrUserExists) {
			errResp = NewConflictError(err.Error())
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *SocketApp) setUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SetUserActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		errResp := NewBadRequestError("isActive is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	updated, err := s.auth.SetUserActive(id, *req.IsActive)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !updated {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *SocketApp) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.audit.Stats()
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, stats)
}

func (s *SocketApp) listConnections(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	conns, err := s.audit.ListConnections(limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"connections": conns})
}

func (s *SocketApp) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	msgs, err := s.audit.ListMessages(limit, offset)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"messages": msgs})
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *SocketApp) purgeRecords(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days <= 0 {
		errResp := NewBadRequestError("days must be a positive integer")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	result, err := s.audit.PurgeOlderThan(days)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"removed": result})
}
