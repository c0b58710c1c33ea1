package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect adapts the canonical SQL text in schema.go to one concrete driver:
// placeholder syntax, ID retrieval after insert, and error translation vary
// across MySQL/Postgres/SQL Server even though the column shape never does.
// No dialect adds a row-limiting clause to any query. cmd/
// ocspingest picks a concrete Dialect by a config string the same way a
// pluggable storage backend is usually selected by name.
type Dialect interface {
	// Name identifies the dialect for logging ("mysql", "postgres", "mssql").
	Name() string

	// Rewrite translates SQL written with "?" placeholders (as in the
	// SQLXxx constants) into the driver's native placeholder syntax.
	Rewrite(query string) string

	// TranslateError maps a driver-specific error to one of the store
	// sentinel errors (ErrDuplicateKey, ErrConnection, ErrNotFound,
	// ErrSerializationConflict), or
	// returns err unchanged if it recognizes none of them.
	TranslateError(err error) error

	// InsertReturningID runs an INSERT and returns the server-assigned row
	// ID. Drivers disagree on how to get this back: MySQL supports
	// sql.Result.LastInsertId, lib/pq needs a "RETURNING ID" clause appended,
	// and SQL Server needs a trailing SCOPE_IDENTITY() query.
	InsertReturningID(ctx context.Context, db *sql.DB, query string, args ...interface{}) (int64, error)
}

// rewriteOrdinal replaces every "?" in query with a dialect's ordinal
// placeholder (e.g. "$1", "$2", ...), used by dialects whose driver does not
// accept "?" directly (postgres, mssql).
func rewriteOrdinal(query string, format func(n int) string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(format(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore is the Backend implementation backed by database/sql. It prepares
// its statements once, against the dialect-rewritten SQL text, and releases
// them unconditionally in Close so that every caller exit path — success,
// per-entry skip, or fatal error — leaves no leaked server-side resources.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect

	stmtUpdateCertFull        *sql.Stmt
	stmtUpdateCertRevocation  *sql.Stmt
	stmtDeleteCert            *sql.Stmt
	stmtFindCertID            *sql.Stmt
	stmtFindIssuerByS1C       *sql.Stmt
}

// Open prepares every statement SQLStore needs against db using dialect's
// placeholder rewriting. The returned store owns those prepared statements;
// callers must call Close when done.
func Open(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}

	prepares := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.stmtUpdateCertFull, SQLUpdateCertFull},
		{&s.stmtUpdateCertRevocation, SQLUpdateCertRevocation},
		{&s.stmtDeleteCert, SQLDeleteCert},
		{&s.stmtFindCertID, SQLFindCertID},
		{&s.stmtFindIssuerByS1C, SQLFindIssuerByS1C},
	}

	for _, p := range prepares {
		stmt, err := db.Prepare(dialect.Rewrite(p.query))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("store: preparing %q: %w", p.query, err)
		}
		*p.dst = stmt
	}

	return s, nil
}

// Close releases every prepared statement. It tolerates being called more
// than once and never returns an error from an already-nil statement, so
// defer s.Close() is always safe regardless of how far Open got.
func (s *SQLStore) Close() error {
	stmts := []*sql.Stmt{
		s.stmtUpdateCertFull,
		s.stmtUpdateCertRevocation,
		s.stmtDeleteCert,
		s.stmtFindCertID,
		s.stmtFindIssuerByS1C,
	}
	var firstErr error
	for _, stmt := range stmts {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
