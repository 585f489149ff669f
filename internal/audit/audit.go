package audit

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/alireza-hadizadeh/socket-app/internal/database"
)

// ErrDuplicateSocket indicates a connect record for a socket id that is
// already active. Correct gateway usage never produces it; treat it as
// a bug signal, not a recoverable condition.
var ErrDuplicateSocket = errors.New("connection already recorded for socket")

// Store is the durable log of connection lifecycle and message events.
// It is independent of live registry state.
type Store struct {
	db  database.Repository
	log *log.Logger
}

func NewStore(logger *log.Logger, db database.Repository) *Store {
	return &Store{
		db:  db,
		log: logger,
	}
}

// RecordConnect inserts an active connection row and returns its id.
func (s *Store) RecordConnect(socketId, platform string, userId *string) (int, error) {
	if platform == "" {
		platform = "unknown"
	}

	id, err := s.db.CreateConnection(database.CreateConnectionParams{
		SocketId: socketId,
		Platform: platform,
		UserId:   userId,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrDuplicateSocket, socketId)
		}
		return 0, fmt.Errorf("create connection record: %w", err)
	}

	return id, nil
}

// RecordDisconnect finalizes the connection row: disconnected timestamp,
// status=disconnected, duration computed from the connect timestamp.
// Returns false when no active row matched, which callers log and
// otherwise ignore.
func (s *Store) RecordDisconnect(socketId string) (bool, error) {
	updated, err := s.db.FinishConnection(socketId)
	if err != nil {
		return false, fmt.Errorf("finish connection record: %w", err)
	}

	if !updated {
		s.log.Printf("no active connection record for socket %q", socketId)
	}

	return updated, nil
}

// RecordMessage appends a message row. Rows referencing a purged
// connection are tolerated so history outlives the connection record.
func (s *Store) RecordMessage(socketId, sender, text, platform string) (int, error) {
	if platform == "" {
		platform = "web"
	}

	id, err := s.db.CreateMessage(database.CreateMessageParams{
		SocketId: socketId,
		Sender:   sender,
		Text:     text,
		Platform: platform,
	})
	if err != nil {
		return 0, fmt.Errorf("create message record: %w", err)
	}

	return id, nil
}

// SetConnectionUser persists the association supplied by an identify
// event.
func (s *Store) SetConnectionUser(socketId, userId, platform string) (bool, error) {
	if platform == "" {
		platform = "unknown"
	}

	updated, err := s.db.UpdateConnectionUser(socketId, userId, platform)
	if err != nil {
		return false, fmt.Errorf("update connection user: %w", err)
	}

	return updated, nil
}

// Stats describes the aggregates over both audit tables, computed on
// demand.
type Stats struct {
	TotalConnections        int      `json:"total_connections"`
	ActiveConnections       int      `json:"active_connections"`
	DisconnectedConnections int      `json:"disconnected_connections"`
	AvgSessionDurationMs    *float64 `json:"avg_session_duration_ms"`
	MaxSessionDurationMs    *int64   `json:"max_session_duration_ms"`
	TotalMessages           int      `json:"total_messages"`
	UniquePlatforms         int      `json:"unique_platforms"`
	UniqueSenders           int      `json:"unique_senders"`
}

func (s *Store) Stats() (Stats, error) {
	connStats, err := s.db.GetConnectionStats()
	if err != nil {
		return Stats{}, fmt.Errorf("connection stats: %w", err)
	}

	msgStats, err := s.db.GetMessageStats()
	if err != nil {
		return Stats{}, fmt.Errorf("message stats: %w", err)
	}

	return Stats{
		TotalConnections:        connStats.TotalConnections,
		ActiveConnections:       connStats.ActiveConnections,
		DisconnectedConnections: connStats.DisconnectedConnections,
		AvgSessionDurationMs:    connStats.AvgSessionDurationMs,
		MaxSessionDurationMs:    connStats.MaxSessionDurationMs,
		TotalMessages:           msgStats.TotalMessages,
		UniquePlatforms:         msgStats.UniquePlatforms,
		UniqueSenders:           msgStats.UniqueSenders,
	}, nil
}

// PurgeResult reports rows removed per table.
type PurgeResult struct {
	Connections int `json:"connections"`
	Messages    int `json:"messages"`
}

// PurgeOlderThan deletes message and connection rows older than the
// cutoff, independently per table. Destructive and irreversible.
func (s *Store) PurgeOlderThan(days int) (PurgeResult, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	messages, err := s.db.DeleteMessagesOlderThan(cutoff)
	if err != nil {
		return PurgeResult{}, fmt.Errorf("purge messages: %w", err)
	}

	connections, err := s.db.DeleteConnectionsOlderThan(cutoff)
	if err != nil {
		return PurgeResult{Messages: messages}, fmt.Errorf("purge connections: %w", err)
	}

	return PurgeResult{
		Connections: connections,
		Messages:    messages,
	}, nil
}

func (s *Store) ListConnections(limit, offset int) ([]database.Connection, error) {
	return s.db.ListConnections(limit, offset)
}

func (s *Store) ListMessages(limit, offset int) ([]database.Message, error) {
	return s.db.ListMessages(limit, offset)
}
