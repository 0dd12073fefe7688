package store

import (
	"context"
	"database/sql"
)

const (
	insertGroupSQL    = "INSERT INTO chat_groups (id, name, description, image, create_time) VALUES (?, ?, ?, ?, ?)"
	insertMemberSQL   = "INSERT IGNORE INTO group_members (group_id, uid, is_admin) VALUES (?, ?, ?)"
	getGroupSQL       = "SELECT id, name, description, image, create_time FROM chat_groups WHERE id=?"
	getMembersSQL     = "SELECT uid, is_admin FROM group_members WHERE group_id=? ORDER BY join_seq"
	listUserGroupsSQL = "SELECT group_id FROM group_members WHERE uid=? ORDER BY join_seq"
	updateGroupSQL    = "UPDATE chat_groups SET name=?, description=?, image=? WHERE id=?"
	deleteMemberSQL   = "DELETE FROM group_members WHERE group_id=? AND uid=?"
	promoteAdminSQL   = "UPDATE group_members SET is_admin=1 WHERE group_id=? AND uid=? AND is_admin=0"
)

// Cascade of DeleteGroup, executed in order.
var deleteGroupSQLs = []string{
	"DELETE p FROM pins AS p JOIN messages AS m ON p.message_id=m.id WHERE m.group_id=?",
	"DELETE s FROM stars AS s JOIN messages AS m ON s.message_id=m.id WHERE m.group_id=?",
	"DELETE h FROM message_hidden AS h JOIN messages AS m ON h.message_id=m.id WHERE m.group_id=?",
	"DELETE FROM messages WHERE group_id=?",
	"DELETE FROM unread_counts WHERE conv_key=CONCAT('" + groupKeyPrefix + "', ?)",
	"DELETE FROM group_members WHERE group_id=?",
	"DELETE FROM chat_groups WHERE id=?",
}

func (s *mysqlStore) CreateGroup(ctx context.Context, g *Group) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertGroupSQL, g.ID, g.Name, g.Description, g.Image, g.CreateTime); err != nil {
			return dupKeyError(err)
		}
		for _, uid := range g.Members {
			if _, err := tx.ExecContext(ctx, insertMemberSQL, g.ID, uid, g.IsAdmin(uid)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *mysqlStore) GetGroup(ctx context.Context, id string) (*Group, error) {
	var g Group
	err := s.QueryRowContext(ctx, getGroupSQL, id).Scan(&g.ID, &g.Name, &g.Description, &g.Image, &g.CreateTime)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, getMembersSQL, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			uid     string
			isAdmin bool
		)
		if err := rows.Scan(&uid, &isAdmin); err != nil {
			return nil, err
		}
		g.Members = append(g.Members, uid)
		if isAdmin {
			g.Admins = append(g.Admins, uid)
		}
	}
	return &g, rows.Err()
}

func (s *mysqlStore) ListUserGroups(ctx context.Context, uid string) ([]string, error) {
	return queryIDs(ctx, s, listUserGroupsSQL, uid)
}

func (s *mysqlStore) UpdateGroup(ctx context.Context, g *Group) error {
	_, err := s.ExecContext(ctx, updateGroupSQL, g.Name, g.Description, g.Image, g.ID)
	return err
}

func (s *mysqlStore) AddMembers(ctx context.Context, groupID string, uids []string) ([]string, error) {
	var added []string
	err := s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		added = added[:0]
		for _, uid := range uids {
			res, err := tx.ExecContext(ctx, insertMemberSQL, groupID, uid, false)
			if err != nil {
				return err
			}
			if ok, err := rowsChanged(res); err != nil {
				return err
			} else if ok {
				added = append(added, uid)
			}
		}
		return nil
	})
	return added, err
}

func (s *mysqlStore) RemoveMember(ctx context.Context, groupID, uid string) error {
	_, err := s.ExecContext(ctx, deleteMemberSQL, groupID, uid)
	return err
}

func (s *mysqlStore) PromoteAdmin(ctx context.Context, groupID, uid string) (bool, error) {
	res, err := s.ExecContext(ctx, promoteAdminSQL, groupID, uid)
	if err != nil {
		return false, err
	}
	return rowsChanged(res)
}

func (s *mysqlStore) DeleteGroup(ctx context.Context, id string) error {
	return s.withTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range deleteGroupSQLs {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
}
