package store

import (
	"database/sql"
	"strings"
	"time"
)

const groupKeyPrefix = "group_"

// ConvKey identifies a conversation in a user's unread counters and pins.
// Group keys carry a prefix so that a group id never collides with a user id.
type ConvKey string

// ValidUserID rejects empty ids and ids carrying the group key prefix, which
// would make DirectKey collide with GroupKey.
func ValidUserID(uid string) bool {
	return uid != "" && !strings.HasPrefix(uid, groupKeyPrefix)
}

func DirectKey(partnerID string) ConvKey {
	return ConvKey(partnerID)
}

func GroupKey(groupID string) ConvKey {
	return ConvKey(groupKeyPrefix + groupID)
}

func (k ConvKey) IsGroup() bool {
	return strings.HasPrefix(string(k), groupKeyPrefix)
}

// ID returns the partner id or group id.
func (k ConvKey) ID() string {
	return strings.TrimPrefix(string(k), groupKeyPrefix)
}

// placeholders returns "?,?,...,?" with n marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func stringArgs(slice []string) []interface{} {
	out := make([]interface{}, len(slice))
	for i, v := range slice {
		out[i] = v
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
