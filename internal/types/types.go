package types

import (
	"time"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// User is the sanitized view of an account, safe to hand to clients.
// The password hash never leaves the database package.
type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type ApiKey struct {
	Id         int        `json:"id"`
	UserId     int        `json:"user_id"`
	KeyName    string     `json:"key_name"`
	ApiKey     string     `json:"api_key"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}
