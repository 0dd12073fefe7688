package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const messageColumns = "id, sender_id, receiver_id, group_id, text, image, status, reply_to, " +
	"deleted_for_everyone, deleted_by, edited, edit_time, create_time"

const (
	insertMessageSQL = "INSERT INTO messages (id, sender_id, receiver_id, group_id, text, image, status, reply_to, create_time) " +
		"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	getMessageSQL      = "SELECT " + messageColumns + " FROM messages WHERE id=?"
	getHiddenForSQL    = "SELECT uid FROM message_hidden WHERE message_id=?"
	advanceStatusSQL   = "UPDATE messages SET status=? WHERE id=? AND status<?"
	lockPendingSQL     = "SELECT " + messageColumns + " FROM messages WHERE receiver_id=? AND status=0 ORDER BY seq FOR UPDATE"
	lockPendingInSQL   = "SELECT " + messageColumns + " FROM messages WHERE group_id IN (%s) AND sender_id<>? AND status=0 ORDER BY seq FOR UPDATE"
	setStatusInSQL     = "UPDATE messages SET status=? WHERE id IN (%s) AND status<?"
	lockUnseenSQL      = "SELECT id FROM messages WHERE sender_id=? AND receiver_id=? AND status<2 ORDER BY seq FOR UPDATE"
	lockGroupUnseenSQL = "SELECT id FROM messages WHERE group_id=? AND sender_id<>? AND status<2 ORDER BY seq FOR UPDATE"
	editMessageSQL     = "UPDATE messages SET text=?, edited=1, edit_time=? WHERE id=? AND deleted_for_everyone=0"
	hideMessageSQL     = "INSERT IGNORE INTO message_hidden (message_id, uid) VALUES (?, ?)"
	deleteEveryoneSQL  = "UPDATE messages SET deleted_for_everyone=1, deleted_by=?, text=?, image='' WHERE id=?"
	searchMessagesSQL  = "SELECT " + messageColumns + " FROM messages AS m " +
		"WHERE MATCH(m.text) AGAINST (? IN NATURAL LANGUAGE MODE) AND m.deleted_for_everyone=0 " +
		"AND (m.sender_id=? OR m.receiver_id=?%s) " +
		"AND NOT EXISTS (SELECT 1 FROM message_hidden AS h WHERE h.message_id=m.id AND h.uid=?) " +
		"ORDER BY m.seq DESC LIMIT ?"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m                            Message
		receiverID, groupID, replyTo sql.NullString
		deletedBy                    sql.NullString
		editTime                     sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.SenderID, &receiverID, &groupID, &m.Text, &m.Image, &m.Status,
		&replyTo, &m.DeletedForEveryone, &deletedBy, &m.Edited, &editTime, &m.CreateTime); err != nil {
		return nil, err
	}
	m.ReceiverID = receiverID.String
	m.GroupID = groupID.String
	m.ReplyTo = replyTo.String
	m.DeletedBy = deletedBy.String
	m.EditTime = timePtr(editTime)
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	defer rows.Close()
	var out []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *mysqlStore) CreateMessage(ctx context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := s.ExecContext(ctx, insertMessageSQL, m.ID, m.SenderID, nullString(m.ReceiverID), nullString(m.GroupID),
		m.Text, m.Image, m.Status, nullString(m.ReplyTo), m.CreateTime)
	return err
}

func (s *mysqlStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m, err := scanMessage(s.QueryRowContext(ctx, getMessageSQL, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	if m.HiddenFor, err = queryIDs(ctx, s, getHiddenForSQL, id); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *mysqlStore) AdvanceStatus(ctx context.Context, id string, to Status) (bool, error) {
	res, err := s.ExecContext(ctx, advanceStatusSQL, to, id, to)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

// setStatus moves the locked messages forward.
func setStatus(ctx context.Context, tx *sql.Tx, ids []string, to Status) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]interface{}{to}, stringArgs(ids)...)
	args = append(args, to)
	_, err := tx.ExecContext(ctx, fmt.Sprintf(setStatusInSQL, placeholders(len(ids))), args...)
	return err
}

func messageIDs(slice []*Message) []string {
	out := make([]string, len(slice))
	for i, m := range slice {
		out[i] = m.ID
	}
	return out
}

func (s *mysqlStore) DeliverPending(ctx context.Context, uid string) ([]*Message, error) {
	var out []*Message
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, lockPendingSQL, uid)
		if err != nil {
			return err
		}
		if out, err = scanMessages(rows); err != nil {
			return err
		}
		return setStatus(ctx, tx, messageIDs(out), StatusDelivered)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		m.Status = StatusDelivered
	}
	return out, nil
}

func (s *mysqlStore) DeliverPendingInGroups(ctx context.Context, uid string, groupIDs []string) ([]*Message, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	var out []*Message
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		args := append(stringArgs(groupIDs), uid)
		rows, err := tx.QueryContext(ctx, fmt.Sprintf(lockPendingInSQL, placeholders(len(groupIDs))), args...)
		if err != nil {
			return err
		}
		if out, err = scanMessages(rows); err != nil {
			return err
		}
		return setStatus(ctx, tx, messageIDs(out), StatusDelivered)
	})
	if err != nil {
		return nil, err
	}
	for _, m := range out {
		m.Status = StatusDelivered
	}
	return out, nil
}

func (s *mysqlStore) markSeen(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	var out []string
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if out, err = queryIDs(ctx, tx, query, args...); err != nil {
			return err
		}
		return setStatus(ctx, tx, out, StatusSeen)
	})
	return out, err
}

func (s *mysqlStore) MarkSeen(ctx context.Context, senderID, receiverID string) ([]string, error) {
	return s.markSeen(ctx, lockUnseenSQL, senderID, receiverID)
}

func (s *mysqlStore) MarkGroupSeen(ctx context.Context, groupID, uid string) ([]string, error) {
	return s.markSeen(ctx, lockGroupUnseenSQL, groupID, uid)
}

func (s *mysqlStore) EditMessage(ctx context.Context, id, text string, editTime time.Time) error {
	res, err := s.ExecContext(ctx, editMessageSQL, text, editTime, id)
	if err != nil {
		return err
	}
	ok, err := rowsChanged(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *mysqlStore) HideMessage(ctx context.Context, id, uid string) (bool, error) {
	res, err := s.ExecContext(ctx, hideMessageSQL, id, uid)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) DeleteForEveryone(ctx context.Context, id, by string) error {
	_, err := s.ExecContext(ctx, deleteEveryoneSQL, by, Tombstone, id)
	return err
}

func (s *mysqlStore) SearchMessages(ctx context.Context, uid string, groupIDs []string, query string, limit int) ([]*Message, error) {
	args := []interface{}{query, uid, uid}
	var inGroups string
	if len(groupIDs) > 0 {
		inGroups = fmt.Sprintf(" OR m.group_id IN (%s)", placeholders(len(groupIDs)))
		args = append(args, stringArgs(groupIDs)...)
	}
	args = append(args, uid, limit)

	rows, err := s.QueryContext(ctx, fmt.Sprintf(searchMessagesSQL, inGroups), args...)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}
