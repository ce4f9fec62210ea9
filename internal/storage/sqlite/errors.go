package sqlite

import (
	"database/sql"
	"errors"
	"strings"

	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"moneywise/internal/core"
)

// translate maps driver errors onto the core error kinds. entity names the
// row kind in client-facing messages.
func translate(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound(op, "%s not found", entity)
	}

	var se *sqlitedriver.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return core.Conflict(op, "%s already exists", entity)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return core.Conflict(op, "%s is referenced by other records", entity)
		}
		// Primary result code only, when extended codes are unavailable.
		if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
			if strings.Contains(se.Error(), "FOREIGN KEY") {
				return core.Conflict(op, "%s is referenced by other records", entity)
			}
			if strings.Contains(se.Error(), "UNIQUE") {
				return core.Conflict(op, "%s already exists", entity)
			}
		}
	}
	return core.Internal(op, err)
}
