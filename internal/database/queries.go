package database

import (
	"time"
)

func (db *PgRepository) CreateUser(params CreateUserParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (username, email, password_hash, role, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $5) RETURNING id, username, email, role, is_active, created_at, updated_at",
		params.Username,
		params.Email,
		params.PasswordHash,
		params.Role,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) GetUserById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, role, is_active, created_at, updated_at "+
			"FROM users WHERE id = $1 LIMIT 1",
		id,
	)

	return scanUser(row)
}

func (db *PgRepository) GetUserByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, role, is_active, created_at, updated_at "+
			"FROM users WHERE email = $1 LIMIT 1",
		email,
	)

	return scanUser(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgRepository) ListUsers() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, username, email, password_hash, role, is_active, created_at, updated_at " +
			"FROM users ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users = make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgRepository) SetUserActive(id int, active bool) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE users SET is_active = $2, updated_at = $3 WHERE id = $1",
		id,
		active,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) CreateSession(userId int, token string, expiresAt time.Time) (Session, error) {
	res := db.conn.QueryRow(
		"INSERT INTO sessions (user_id, session_token, expires_at, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, user_id, session_token, expires_at, created_at",
		userId,
		token,
		expiresAt,
		time.Now().UTC(),
	)

	var s Session
	err := res.Scan(
		&s.Id,
		&s.UserId,
		&s.SessionToken,
		&s.ExpiresAt,
		&s.CreatedAt,
	)

	return s, err
}

func (db *PgRepository) GetSessionByToken(token string) (Session, error) {
	row := db.conn.QueryRow(
		"SELECT id, user_id, session_token, expires_at, created_at FROM sessions "+
			"WHERE session_token = $1 AND expires_at > $2 LIMIT 1",
		token,
		time.Now().UTC(),
	)

	var s Session
	err := row.Scan(
		&s.Id,
		&s.UserId,
		&s.SessionToken,
		&s.ExpiresAt,
		&s.CreatedAt,
	)

	return s, err
}

func (db *PgRepository) DeleteSession(token string) (bool, error) {
	res, err := db.conn.Exec("DELETE FROM sessions WHERE session_token = $1", token)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) DeleteExpiredSessions() (int, error) {
	res, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= $1", time.Now().UTC())
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (db *PgRepository) CreateApiKey(params CreateApiKeyParams) (ApiKey, error) {
	res := db.conn.QueryRow(
		"INSERT INTO api_keys (user_id, key_name, api_key, expires_at, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"RETURNING id, user_id, key_name, api_key, is_active, last_used_at, expires_at, created_at",
		params.UserId,
		params.KeyName,
		params.ApiKey,
		params.ExpiresAt,
		time.Now().UTC(),
	)

	return scanApiKey(res)
}

func scanApiKey(row rowScanner) (ApiKey, error) {
	var k ApiKey
	err := row.Scan(
		&k.Id,
		&k.UserId,
		&k.KeyName,
		&k.ApiKey,
		&k.IsActive,
		&k.LastUsedAt,
		&k.ExpiresAt,
		&k.CreatedAt,
	)

	return k, err
}

func (db *PgRepository) GetActiveApiKey(token string) (ApiKey, error) {
	row := db.conn.QueryRow(
		"SELECT id, user_id, key_name, api_key, is_active, last_used_at, expires_at, created_at "+
			"FROM api_keys WHERE api_key = $1 AND is_active = TRUE "+
			"AND (expires_at IS NULL OR expires_at > $2) LIMIT 1",
		token,
		time.Now().UTC(),
	)

	return scanApiKey(row)
}

func (db *PgRepository) ListApiKeysByUserId(userId int) ([]ApiKey, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, key_name, api_key, is_active, last_used_at, expires_at, created_at "+
			"FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys = make([]ApiKey, 0)
	for rows.Next() {
		k, err := scanApiKey(rows)
		if err != nil {
			return nil, err
		}

		keys = append(keys, k)
	}

	return keys, rows.Err()
}

func (db *PgRepository) UpdateApiKeyLastUsed(token string) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE api_keys SET last_used_at = $2 WHERE api_key = $1",
		token,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) RevokeApiKey(id, userId int) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE api_keys SET is_active = FALSE WHERE id = $1 AND user_id = $2",
		id,
		userId,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) CreateConnection(params CreateConnectionParams) (int, error) {
	res := db.conn.QueryRow(
		"INSERT INTO connections (socket_id, platform, user_id, connected_at, status, created_at) "+
			"VALUES ($1, $2, $3, $4, 'active', $4) RETURNING id",
		params.SocketId,
		params.Platform,
		params.UserId,
		time.Now().UTC(),
	)

	var id int
	err := res.Scan(&id)
	return id, err
}

func (db *PgRepository) FinishConnection(socketId string) (bool, error) {
	now := time.Now().UTC()
	res, err := db.conn.Exec(
		"UPDATE connections SET disconnected_at = $2, status = 'disconnected', "+
			"duration_ms = CAST(EXTRACT(EPOCH FROM ($2 - connected_at)) * 1000 AS BIGINT) "+
			"WHERE socket_id = $1 AND status = 'active'",
		socketId,
		now,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) UpdateConnectionUser(socketId, userId, platform string) (bool, error) {
	res, err := db.conn.Exec(
		"UPDATE connections SET user_id = $2, platform = $3 WHERE socket_id = $1",
		socketId,
		userId,
		platform,
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	return n > 0, err
}

func (db *PgRepository) ListConnections(limit, offset int) ([]Connection, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, socket_id, platform, user_id, connected_at, disconnected_at, duration_ms, status, created_at "+
			"FROM connections ORDER BY connected_at DESC LIMIT $1 OFFSET $2",
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conns = make([]Connection, 0, limit)
	for rows.Next() {
		var c Connection
		if err := rows.Scan(
			&c.Id,
			&c.SocketId,
			&c.Platform,
			&c.UserId,
			&c.ConnectedAt,
			&c.DisconnectedAt,
			&c.DurationMs,
			&c.Status,
			&c.CreatedAt,
		); err != nil {
			return nil, err
		}

		conns = append(conns, c)
	}

	return conns, rows.Err()
}

func (db *PgRepository) CreateMessage(params CreateMessageParams) (int, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (socket_id, sender, message_text, platform, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id",
		params.SocketId,
		params.Sender,
		params.Text,
		params.Platform,
		time.Now().UTC(),
	)

	var id int
	err := res.Scan(&id)
	return id, err
}

func (db *PgRepository) ListMessages(limit, offset int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(
		"SELECT id, socket_id, sender, message_text, platform, created_at "+
			"FROM messages ORDER BY created_at DESC LIMIT $1 OFFSET $2",
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs = make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.Id,
			&m.SocketId,
			&m.Sender,
			&m.Text,
			&m.Platform,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}

		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

func (db *PgRepository) GetConnectionStats() (ConnectionStats, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*), " +
			"COUNT(*) FILTER (WHERE status = 'active'), " +
			"COUNT(*) FILTER (WHERE status = 'disconnected'), " +
			"AVG(duration_ms), " +
			"MAX(duration_ms) " +
			"FROM connections",
	)

	var stats ConnectionStats
	err := row.Scan(
		&stats.TotalConnections,
		&stats.ActiveConnections,
		&stats.DisconnectedConnections,
		&stats.AvgSessionDurationMs,
		&stats.MaxSessionDurationMs,
	)

	return stats, err
}

func (db *PgRepository) GetMessageStats() (MessageStats, error) {
	row := db.conn.QueryRow(
		"SELECT COUNT(*), COUNT(DISTINCT platform), COUNT(DISTINCT sender) FROM messages",
	)

	var stats MessageStats
	err := row.Scan(
		&stats.TotalMessages,
		&stats.UniquePlatforms,
		&stats.UniqueSenders,
	)

	return stats, err
}

func (db *PgRepository) DeleteConnectionsOlderThan(cutoff time.Time) (int, error) {
	res, err := db.conn.Exec("DELETE FROM connections WHERE connected_at < $1", cutoff)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

func (db *PgRepository) DeleteMessagesOlderThan(cutoff time.Time) (int, error) {
	res, err := db.conn.Exec("DELETE FROM messages WHERE created_at < $1", cutoff)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}
