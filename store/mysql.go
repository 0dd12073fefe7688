package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
)

// Schema is the MySQL schema, statements are separated by ";\n".
const Schema = `CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  full_name VARCHAR(255) NOT NULL DEFAULT '',
  online TINYINT NOT NULL DEFAULT 0,
  last_seen DATETIME(3) NULL
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS unread_counts (
  uid VARCHAR(64) NOT NULL,
  conv_key VARCHAR(96) NOT NULL,
  count INT NOT NULL DEFAULT 0,
  PRIMARY KEY (uid, conv_key)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS device_tokens (
  uid VARCHAR(64) NOT NULL,
  token VARCHAR(255) NOT NULL,
  device_type VARCHAR(16) NOT NULL DEFAULT 'web',
  create_time DATETIME(3) NOT NULL,
  PRIMARY KEY (uid, token)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS messages (
  seq BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
  id VARCHAR(64) NOT NULL,
  sender_id VARCHAR(64) NOT NULL,
  receiver_id VARCHAR(64) NULL,
  group_id VARCHAR(64) NULL,
  text VARCHAR(2000) NOT NULL DEFAULT '',
  image VARCHAR(1024) NOT NULL DEFAULT '',
  status TINYINT NOT NULL DEFAULT 0,
  reply_to VARCHAR(64) NULL,
  deleted_for_everyone TINYINT NOT NULL DEFAULT 0,
  deleted_by VARCHAR(64) NULL,
  edited TINYINT NOT NULL DEFAULT 0,
  edit_time DATETIME(3) NULL,
  create_time DATETIME(3) NOT NULL,
  UNIQUE KEY uk_id (id),
  KEY idx_receiver_status (receiver_id, status),
  KEY idx_group_status (group_id, status),
  KEY idx_sender_receiver (sender_id, receiver_id),
  FULLTEXT KEY ft_text (text)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS message_hidden (
  message_id VARCHAR(64) NOT NULL,
  uid VARCHAR(64) NOT NULL,
  PRIMARY KEY (message_id, uid)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS chat_groups (
  id VARCHAR(64) NOT NULL PRIMARY KEY,
  name VARCHAR(255) NOT NULL,
  description VARCHAR(1024) NOT NULL DEFAULT '',
  image VARCHAR(1024) NOT NULL DEFAULT '',
  create_time DATETIME(3) NOT NULL
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS group_members (
  group_id VARCHAR(64) NOT NULL,
  uid VARCHAR(64) NOT NULL,
  is_admin TINYINT NOT NULL DEFAULT 0,
  join_seq BIGINT NOT NULL AUTO_INCREMENT,
  PRIMARY KEY (group_id, uid),
  KEY idx_uid (uid),
  UNIQUE KEY uk_join_seq (join_seq)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS pins (
  uid VARCHAR(64) NOT NULL,
  conv_key VARCHAR(96) NOT NULL,
  message_id VARCHAR(64) NOT NULL,
  create_time DATETIME(3) NOT NULL,
  PRIMARY KEY (uid, conv_key, message_id),
  KEY idx_message (message_id)
) DEFAULT CHARSET=utf8mb4;
CREATE TABLE IF NOT EXISTS stars (
  uid VARCHAR(64) NOT NULL,
  message_id VARCHAR(64) NOT NULL,
  create_time DATETIME(3) NOT NULL,
  PRIMARY KEY (uid, message_id),
  KEY idx_message (message_id)
) DEFAULT CHARSET=utf8mb4`

// mysqlStore implements `IStore` on MySQL.
type mysqlStore struct {
	*sql.DB
}

var _ IStore = (*mysqlStore)(nil)

func NewMysqlStore(db *sql.DB) *mysqlStore {
	return &mysqlStore{db}
}

// EnsureSchema creates missing tables.
func (s *mysqlStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(Schema, ";\n") {
		if _, err := s.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *mysqlStore) withTx(ctx context.Context, exec func(ctx context.Context, tx *sql.Tx) error, opts ...*sql.TxOptions) error {
	txOpts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	if len(opts) > 0 {
		txOpts = opts[0]
	}
	tx, err := s.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	if err := exec(ctx, tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			glog.Errorf("failed to rollback: %v, cause: %v", err2, err)
		}
		return err
	}

	return tx.Commit()
}

// dupKeyError maps a duplicate entry error to ErrDuplicate.
func dupKeyError(err error) error {
	var e *mysql.MySQLError
	if errors.As(err, &e) && e.Number == 1062 {
		return fmt.Errorf("%w: %s", ErrDuplicate, e.Message)
	}
	return err
}

func rowsChanged(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// queryIDs runs a query that selects a single string column.
func queryIDs(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
