package database

import "time"

// Repository is the persistence boundary shared by the credential store
// and the audit store. Every write is a single statement.
type Repository interface {
	Ping() error

	CreateUser(params CreateUserParams) (User, error)
	GetUserById(id int) (User, error)
	GetUserByEmail(email string) (User, error)
	ListUsers() ([]User, error)
	SetUserActive(id int, active bool) (bool, error)

	CreateSession(userId int, token string, expiresAt time.Time) (Session, error)
	GetSessionByToken(token string) (Session, error)
	DeleteSession(token string) (bool, error)
	DeleteExpiredSessions() (int, error)

	CreateApiKey(params CreateApiKeyParams) (ApiKey, error)
	GetActiveApiKey(token string) (ApiKey, error)
	ListApiKeysByUserId(userId int) ([]ApiKey, error)
	UpdateApiKeyLastUsed(token string) (bool, error)
	RevokeApiKey(id, userId int) (bool, error)

	CreateConnection(params CreateConnectionParams) (int, error)
	FinishConnection(socketId string) (bool, error)
	UpdateConnectionUser(socketId, userId, platform string) (bool, error)
	ListConnections(limit, offset int) ([]Connection, error)

	CreateMessage(params CreateMessageParams) (int, error)
	ListMessages(limit, offset int) ([]Message, error)

	GetConnectionStats() (ConnectionStats, error)
	GetMessageStats() (MessageStats, error)
	DeleteConnectionsOlderThan(cutoff time.Time) (int, error)
	DeleteMessagesOlderThan(cutoff time.Time) (int, error)
}
