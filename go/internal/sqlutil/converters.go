package sqlutil

import (
	"database/sql"
	"time"
)

// ToSqlTime converts a Go time pointer to sql.NullTime. Nil and zero times
// become NULL.
func ToSqlTime(val *time.Time) sql.NullTime {
	if val == nil || val.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *val, Valid: true}
}
