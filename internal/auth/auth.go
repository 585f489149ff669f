package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alireza-hadizadeh/socket-app/internal/database"
	"github.com/alireza-hadizadeh/socket-app/internal/types"
)

const (
	sessionDuration = 24 * time.Hour

	// apiKeyPrefix makes keys recognizable in logs and config files.
	apiKeyPrefix   = "sk_"
	tokenByteLen   = 32
	maxKeyAttempts = 3
)

// Service is the credential and session store. It owns password
// hashing, session issuance and verification, API key issuance and
// resolution, and the two-tier role check.
type Service struct {
	db  database.Repository
	log *log.Logger
}

func NewService(logger *log.Logger, db database.Repository) *Service {
	return &Service{
		db:  db,
		log: logger,
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func generateToken() (string, error) {
	buf := make([]byte, tokenByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

func sanitizeUser(u database.User) types.User {
	return types.User{
		Id:        u.Id,
		Username:  u.Username,
		Email:     u.Email,
		Role:      types.Role(u.Role),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// Authenticate checks an email/password pair and, on success, issues a
// 24-hour session. The returned user never carries the password hash.
func (s *Service) Authenticate(email, password string) (types.User, string, error) {
	dbUser, err := s.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, "", ErrInvalidCredentials
		}
		return types.User{}, "", fmt.Errorf("get user by email: %w", err)
	}

	if !dbUser.IsActive {
		return types.User{}, "", ErrAccountInactive
	}

	if !VerifyPassword(password, dbUser.PasswordHash) {
		return types.User{}, "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return types.User{}, "", err
	}

	session, err := s.db.CreateSession(dbUser.Id, token, time.Now().UTC().Add(sessionDuration))
	if err != nil {
		return types.User{}, "", fmt.Errorf("create session: %w", err)
	}

	return sanitizeUser(dbUser), session.SessionToken, nil
}

// VerifySession resolves a session token to its owning user. Expired
// sessions are not eagerly purged; an expired row simply fails the
// lookup.
func (s *Service) VerifySession(token string) (types.User, error) {
	session, err := s.db.GetSessionByToken(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrSessionInvalid
		}
		return types.User{}, fmt.Errorf("get session: %w", err)
	}

	dbUser, err := s.db.GetUserById(session.UserId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrUserInactive
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}

	if !dbUser.IsActive {
		return types.User{}, ErrUserInactive
	}

	return sanitizeUser(dbUser), nil
}

// Logout deletes the session row. It is idempotent and reports whether
// a row was actually removed.
func (s *Service) Logout(token string) bool {
	removed, err := s.db.DeleteSession(token)
	if err != nil {
		s.log.Println("delete session:", err)
		return false
	}

	return removed
}

// IssueAPIKey generates a prefixed high-entropy key for the user. A
// token collision is statistically negligible but handled by retrying
// with a fresh token.
func (s *Service) IssueAPIKey(userId int, keyName string, expiresAt *time.Time) (types.ApiKey, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		token, err := generateToken()
		if err != nil {
			return types.ApiKey{}, err
		}

		key, err := s.db.CreateApiKey(database.CreateApiKeyParams{
			UserId:    userId,
			KeyName:   keyName,
			ApiKey:    apiKeyPrefix + token,
			ExpiresAt: expiresAt,
		})
		if err != nil {
			if database.IsUniqueViolation(err) {
				s.log.Println("api key token collision, retrying")
				continue
			}
			return types.ApiKey{}, fmt.Errorf("create api key: %w", err)
		}

		return sanitizeApiKey(key), nil
	}

	return types.ApiKey{}, fmt.Errorf("failed to generate unique api key after %d attempts", maxKeyAttempts)
}

func sanitizeApiKey(k database.ApiKey) types.ApiKey {
	return types.ApiKey{
		Id:         k.Id,
		UserId:     k.UserId,
		KeyName:    k.KeyName,
		ApiKey:     k.ApiKey,
		IsActive:   k.IsActive,
		LastUsedAt: k.LastUsedAt,
		ExpiresAt:  k.ExpiresAt,
		CreatedAt:  k.CreatedAt,
	}
}

// ResolveAPIKey matches only active, non-expired keys.
func (s *Service) ResolveAPIKey(token string) (types.ApiKey, error) {
	key, err := s.db.GetActiveApiKey(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.ApiKey{}, ErrApiKeyInvalid
		}
		return types.ApiKey{}, fmt.Errorf("get api key: %w", err)
	}

	return sanitizeApiKey(key), nil
}

// TouchAPIKey records key usage. Failures are logged, never fatal.
func (s *Service) TouchAPIKey(token string) {
	if _, err := s.db.UpdateApiKeyLastUsed(token); err != nil {
		s.log.Println("update api key last used:", err)
	}
}

func (s *Service) ListAPIKeys(userId int) ([]types.ApiKey, error) {
	keys, err := s.db.ListApiKeysByUserId(userId)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	sanitized := make([]types.ApiKey, len(keys))
	for i, k := range keys {
		sanitized[i] = sanitizeApiKey(k)
	}

	return sanitized, nil
}

// RevokeAPIKey sets active=false on a key owned by userId. Connections
// already authenticated with the key keep the identity captured at
// handshake time.
func (s *Service) RevokeAPIKey(id, userId int) (bool, error) {
	return s.db.RevokeApiKey(id, userId)
}

// GetUser resolves an account id to its sanitized view. Deactivated
// accounts fail with ErrUserInactive so a still-active API key cannot
// authenticate a connection for them.
func (s *Service) GetUser(id int) (types.User, error) {
	dbUser, err := s.db.GetUserById(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrUserInactive
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}

	if !dbUser.IsActive {
		return types.User{}, ErrUserInactive
	}

	return sanitizeUser(dbUser), nil
}

func (s *Service) CreateUser(username, email, password string, role types.Role) (types.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	dbUser, err := s.db.CreateUser(database.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         string(role),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return types.User{}, ErrUserExists
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	return sanitizeUser(dbUser), nil
}

// SetUserActive toggles an account's active flag. Deactivation blocks
// new logins and handshakes; live connections keep their identity.
func (s *Service) SetUserActive(id int, active bool) (bool, error) {
	return s.db.SetUserActive(id, active)
}

// PurgeExpiredSessions removes session rows past their expiry. Lookups
// already filter on expiry; this is operational cleanup only.
func (s *Service) PurgeExpiredSessions() (int, error) {
	return s.db.DeleteExpiredSessions()
}

func (s *Service) ListUsers() ([]types.User, error) {
	users, err := s.db.ListUsers()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	sanitized := make([]types.User, len(users))
	for i, u := range users {
		sanitized[i] = sanitizeUser(u)
	}

	return sanitized, nil
}

// Authorize implements the asymmetric two-tier check: admin satisfies
// any requirement, client satisfies only a client requirement.
func Authorize(role, required types.Role) bool {
	if required == types.RoleClient {
		return role == types.RoleAdmin || role == types.RoleClient
	}

	return role == required
}
