package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresDialect adapts the canonical SQL text for lib/pq, which requires
// ordinal "$n" placeholders and has no LastInsertId support.
type PostgresDialect struct{}

var _ Dialect = PostgresDialect{}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Rewrite(query string) string {
	return rewriteOrdinal(query, func(n int) string { return fmt.Sprintf("$%d", n) })
}

func (PostgresDialect) TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return ErrDuplicateKey
		case "serialization_failure", "deadlock_detected":
			return ErrSerializationConflict
		case "connection_exception", "connection_does_not_exist", "connection_failure":
			return ErrConnection
		}
	}
	return err
}

func (PostgresDialect) InsertReturningID(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error) {
	d := PostgresDialect{}
	rewritten := d.Rewrite(query) + " RETURNING ID"
	var id int64
	err := db.QueryRowContext(ctx, rewritten, args...).Scan(&id)
	if err != nil {
		return 0, d.TranslateError(err)
	}
	return id, nil
}
