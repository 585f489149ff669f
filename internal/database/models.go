package database

import "time"

type User struct {
	Id           int
	Username     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	Id           int
	UserId       int
	SessionToken string
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

type ApiKey struct {
	Id         int
	UserId     int
	KeyName    string
	ApiKey     string
	IsActive   bool
	LastUsedAt *time.Time
	ExpiresAt  *time.Time
	CreatedAt  time.Time
}

// Connection rows keep user_id as free text: anonymous connections have
// none, authenticated ones carry the account id, and identify events may
// supply an external identifier the gateway has no account for.
type Connection struct {
	Id             int
	SocketId       string
	Platform       string
	UserId         *string
	ConnectedAt    time.Time
	DisconnectedAt *time.Time
	DurationMs     *int64
	Status         string
	CreatedAt      time.Time
}

type Message struct {
	Id        int
	SocketId  string
	Sender    string
	Text      string
	Platform  string
	CreatedAt time.Time
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

type CreateApiKeyParams struct {
	UserId    int
	KeyName   string
	ApiKey    string
	ExpiresAt *time.Time
}

type CreateConnectionParams struct {
	SocketId string
	Platform string
	UserId   *string
}

type CreateMessageParams struct {
	SocketId string
	Sender   string
	Text     string
	Platform string
}

// ConnectionStats holds the aggregates computed over the connections table.
// Average and max are nil when no connection has been finalized yet.
type ConnectionStats struct {
	TotalConnections        int
	ActiveConnections       int
	DisconnectedConnections int
	AvgSessionDurationMs    *float64
	MaxSessionDurationMs    *int64
}

type MessageStats struct {
	TotalMessages   int
	UniquePlatforms int
	UniqueSenders   int
}
