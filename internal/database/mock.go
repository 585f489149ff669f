package database

import (
	"time"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateUser(params CreateUserParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserById(id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetUserByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) ListUsers() ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockRepository) SetUserActive(id int, active bool) (bool, error) {
	args := m.Called(id, active)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) CreateSession(userId int, token string, expiresAt time.Time) (Session, error) {
	args := m.Called(userId, token, expiresAt)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockRepository) GetSessionByToken(token string) (Session, error) {
	args := m.Called(token)
	return args.Get(0).(Session), args.Error(1)
}
func (m *MockRepository) DeleteSession(token string) (bool, error) {
	args := m.Called(token)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) DeleteExpiredSessions() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) CreateApiKey(params CreateApiKeyParams) (ApiKey, error) {
	args := m.Called(params)
	return args.Get(0).(ApiKey), args.Error(1)
}
func (m *MockRepository) GetActiveApiKey(token string) (ApiKey, error) {
	args := m.Called(token)
	return args.Get(0).(ApiKey), args.Error(1)
}
func (m *MockRepository) ListApiKeysByUserId(userId int) ([]ApiKey, error) {
	args := m.Called(userId)
	return args.Get(0).([]ApiKey), args.Error(1)
}
func (m *MockRepository) UpdateApiKeyLastUsed(token string) (bool, error) {
	args := m.Called(token)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) RevokeApiKey(id, userId int) (bool, error) {
	args := m.Called(id, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) CreateConnection(params CreateConnectionParams) (int, error) {
	args := m.Called(params)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) FinishConnection(socketId string) (bool, error) {
	args := m.Called(socketId)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) UpdateConnectionUser(socketId, userId, platform string) (bool, error) {
	args := m.Called(socketId, userId, platform)
	return args.Bool(0), args.Error(1)
}
func (m *MockRepository) ListConnections(limit, offset int) ([]Connection, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]Connection), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (int, error) {
	args := m.Called(params)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) ListMessages(limit, offset int) ([]Message, error) {
	args := m.Called(limit, offset)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockRepository) GetConnectionStats() (ConnectionStats, error) {
	args := m.Called()
	return args.Get(0).(ConnectionStats), args.Error(1)
}
func (m *MockRepository) GetMessageStats() (MessageStats, error) {
	args := m.Called()
	return args.Get(0).(MessageStats), args.Error(1)
}
func (m *MockRepository) DeleteConnectionsOlderThan(cutoff time.Time) (int, error) {
	args := m.Called(cutoff)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) DeleteMessagesOlderThan(cutoff time.Time) (int, error) {
	args := m.Called(cutoff)
	return args.Int(0), args.Error(1)
}
