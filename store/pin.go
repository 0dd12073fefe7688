package store

import (
	"context"
	"time"
)

const (
	insertPinSQL  = "INSERT IGNORE INTO pins (uid, conv_key, message_id, create_time) VALUES (?, ?, ?, ?)"
	deletePinSQL  = "DELETE FROM pins WHERE uid=? AND conv_key=? AND message_id=?"
	deletePinsSQL = "DELETE FROM pins WHERE message_id=?"
	listPinsSQL   = "SELECT message_id FROM pins WHERE uid=? AND conv_key=? ORDER BY create_time"
	insertStarSQL = "INSERT IGNORE INTO stars (uid, message_id, create_time) VALUES (?, ?, ?)"
	deleteStarSQL = "DELETE FROM stars WHERE uid=? AND message_id=?"
	listStarsSQL  = "SELECT message_id FROM stars WHERE uid=? ORDER BY create_time DESC"
)

func (s *mysqlStore) AddPin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error) {
	res, err := s.ExecContext(ctx, insertPinSQL, uid, string(key), msgID, time.Now())
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) RemovePin(ctx context.Context, uid string, key ConvKey, msgID string) (bool, error) {
	res, err := s.ExecContext(ctx, deletePinSQL, uid, string(key), msgID)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) RemovePinsOf(ctx context.Context, msgID string) (int64, error) {
	res, err := s.ExecContext(ctx, deletePinsSQL, msgID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *mysqlStore) ListPins(ctx context.Context, uid string, key ConvKey) ([]string, error) {
	return queryIDs(ctx, s, listPinsSQL, uid, string(key))
}

func (s *mysqlStore) AddStar(ctx context.Context, uid, msgID string) (bool, error) {
	res, err := s.ExecContext(ctx, insertStarSQL, uid, msgID, time.Now())
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) RemoveStar(ctx context.Context, uid, msgID string) (bool, error) {
	res, err := s.ExecContext(ctx, deleteStarSQL, uid, msgID)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) ListStars(ctx context.Context, uid string) ([]string, error) {
	return queryIDs(ctx, s, listStarsSQL, uid)
}
