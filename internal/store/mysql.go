package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
)

// MySQLDialect adapts the canonical SQL text for go-sql-driver/mysql, which
// uses "?" placeholders natively and reports LastInsertId.
type MySQLDialect struct{}

var _ Dialect = MySQLDialect{}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) Rewrite(query string) string { return query }

func (MySQLDialect) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062: // ER_DUP_ENTRY
			return ErrDuplicateKey
		case 1213, 1205: // ER_LOCK_DEADLOCK, ER_LOCK_WAIT_TIMEOUT
			return ErrSerializationConflict
		case 1042, 1043, 2002, 2003, 2006, 2013: // connection/handshake family
			return ErrConnection
		}
	}
	if strings.Contains(err.Error(), "driver: bad connection") {
		return ErrConnection
	}
	return err
}

func (MySQLDialect) InsertReturningID(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error) {
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, MySQLDialect{}.TranslateError(err)
	}
	return res.LastInsertId()
}
