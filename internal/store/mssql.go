package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"
)

// MSSQLDialect adapts the canonical SQL text for denisenkom/go-mssqldb,
// which uses ordinal "@p1" placeholders and has no LastInsertId support
// either (SQL Server wants SCOPE_IDENTITY() instead).
type MSSQLDialect struct{}

var _ Dialect = MSSQLDialect{}

func (MSSQLDialect) Name() string { return "mssql" }

func (MSSQLDialect) Rewrite(query string) string {
	return rewriteOrdinal(query, func(n int) string { return fmt.Sprintf("@p%d", n) })
}

func (MSSQLDialect) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Violation of") && strings.Contains(msg, "UNIQUE"):
		return ErrDuplicateKey
	case strings.Contains(msg, "Violation of PRIMARY KEY"):
		return ErrDuplicateKey
	case strings.Contains(msg, "deadlocked"), strings.Contains(msg, "Snapshot isolation transaction"):
		return ErrSerializationConflict
	case strings.Contains(msg, "connection"), strings.Contains(msg, "broken pipe"):
		return ErrConnection
	}
	return err
}

func (MSSQLDialect) InsertReturningID(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error) {
	d := MSSQLDialect{}
	rewritten := d.Rewrite(query) + "; SELECT CAST(SCOPE_IDENTITY() AS BIGINT)"
	var id int64
	err := db.QueryRowContext(ctx, rewritten, args...).Scan(&id)
	if err != nil {
		return 0, d.TranslateError(err)
	}
	return id, nil
}
