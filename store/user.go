package store

import (
	"context"
	"database/sql"
	"time"
)

const (
	getUserSQL         = "SELECT id, full_name, online, last_seen FROM users WHERE id=?"
	insertUserSQL      = "INSERT INTO users (id, full_name) VALUES (?, ?)"
	setOnlineSQL       = "UPDATE users SET online=1 WHERE id=?"
	setOfflineSQL      = "UPDATE users SET online=0, last_seen=? WHERE id=?"
	incrUnreadSQL      = "INSERT INTO unread_counts (uid, conv_key, count) VALUES (?, ?, 1) ON DUPLICATE KEY UPDATE count=count+1"
	getUnreadSQL       = "SELECT count FROM unread_counts WHERE uid=? AND conv_key=?"
	clearUnreadSQL     = "UPDATE unread_counts SET count=0 WHERE uid=? AND conv_key=? AND count<>0"
	getUnreadCountsSQL = "SELECT conv_key, count FROM unread_counts WHERE uid=? AND count>0"
	upsertTokenSQL     = "INSERT INTO device_tokens (uid, token, device_type, create_time) VALUES (?, ?, ?, ?) ON DUPLICATE KEY UPDATE device_type=VALUES(device_type)"
	deleteTokenSQL     = "DELETE FROM device_tokens WHERE uid=? AND token=?"
	getDeviceTokensSQL = "SELECT token FROM device_tokens WHERE uid=? ORDER BY create_time"
)

func (s *mysqlStore) GetUser(ctx context.Context, uid string) (*User, error) {
	var (
		u        User
		lastSeen sql.NullTime
	)
	err := s.QueryRowContext(ctx, getUserSQL, uid).Scan(&u.ID, &u.FullName, &u.Online, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	u.LastSeen = timePtr(lastSeen)
	return &u, nil
}

func (s *mysqlStore) CreateUser(ctx context.Context, u *User) error {
	if !ValidUserID(u.ID) {
		return ErrInvalidID
	}
	_, err := s.ExecContext(ctx, insertUserSQL, u.ID, u.FullName)
	return dupKeyError(err)
}

func (s *mysqlStore) SetPresence(ctx context.Context, uid string, online bool, lastSeen time.Time) error {
	var err error
	if online {
		_, err = s.ExecContext(ctx, setOnlineSQL, uid)
	} else {
		_, err = s.ExecContext(ctx, setOfflineSQL, lastSeen, uid)
	}
	return err
}

func (s *mysqlStore) IncrUnread(ctx context.Context, uid string, key ConvKey) (int32, error) {
	var out int32
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, incrUnreadSQL, uid, string(key)); err != nil {
			return err
		}
		// The row is locked by the upsert until commit.
		return tx.QueryRowContext(ctx, getUnreadSQL, uid, string(key)).Scan(&out)
	})
	return out, err
}

func (s *mysqlStore) GetUnread(ctx context.Context, uid string, key ConvKey) (int32, error) {
	var out int32
	err := s.QueryRowContext(ctx, getUnreadSQL, uid, string(key)).Scan(&out)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return out, err
}

func (s *mysqlStore) ClearUnread(ctx context.Context, uid string, key ConvKey) (bool, error) {
	res, err := s.ExecContext(ctx, clearUnreadSQL, uid, string(key))
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) GetUnreadCounts(ctx context.Context, uid string) (map[ConvKey]int32, error) {
	rows, err := s.QueryContext(ctx, getUnreadCountsSQL, uid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[ConvKey]int32)
	for rows.Next() {
		var (
			key   string
			count int32
		)
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		out[ConvKey(key)] = count
	}
	return out, rows.Err()
}

func (s *mysqlStore) AddDeviceToken(ctx context.Context, uid string, token *DeviceToken) error {
	_, err := s.ExecContext(ctx, upsertTokenSQL, uid, token.Token, token.DeviceType, token.CreateTime)
	return err
}

func (s *mysqlStore) RemoveDeviceToken(ctx context.Context, uid, token string) error {
	_, err := s.ExecContext(ctx, deleteTokenSQL, uid, token)
	return err
}

func (s *mysqlStore) GetDeviceTokens(ctx context.Context, uid string) ([]string, error) {
	return queryIDs(ctx, s, getDeviceTokensSQL, uid)
}
