package storage

import (
	"database/sql"
	"errors"
)

// isNoRows reports whether err is the no-rows sentinel from database/sql.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
