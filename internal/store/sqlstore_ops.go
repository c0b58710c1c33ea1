package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// FetchIssuerByS1C implements Backend.
func (s *SQLStore) FetchIssuerByS1C(ctx context.Context, s1c string) (*Issuer, error) {
	var id int64
	var crlInfoJSON []byte
	var revInfoJSON []byte
	err := s.stmtFindIssuerByS1C.QueryRowContext(ctx, s1c).Scan(&id, &revInfoJSON, &crlInfoJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.dialect.TranslateError(err)
	}

	issuer := &Issuer{ID: id, S1C: s1c}
	if len(crlInfoJSON) > 0 {
		if err := json.Unmarshal(crlInfoJSON, &issuer.CRLInfo); err != nil {
			return nil, fmt.Errorf("store: decoding CRL_INFO for issuer %d: %w", id, err)
		}
	}
	if len(revInfoJSON) > 0 {
		var ri RevInfo
		if err := json.Unmarshal(revInfoJSON, &ri); err != nil {
			return nil, fmt.Errorf("store: decoding REV_INFO for issuer %d: %w", id, err)
		}
		issuer.RevInfo = &ri
	}
	return issuer, nil
}

// UpsertIssuer implements Backend. It is a two-statement find-then-write
// rather than a single prepared statement because the ISSUER table is
// touched at most once per import run, never on the CERT hot path, so there
// is nothing to gain from preparing it up front.
func (s *SQLStore) UpsertIssuer(ctx context.Context, issuer *Issuer) (int64, error) {
	crlInfoJSON, err := json.Marshal(issuer.CRLInfo)
	if err != nil {
		return 0, fmt.Errorf("store: encoding CRL_INFO: %w", err)
	}
	var revInfoJSON []byte
	if issuer.RevInfo != nil {
		revInfoJSON, err = json.Marshal(issuer.RevInfo)
		if err != nil {
			return 0, fmt.Errorf("store: encoding REV_INFO: %w", err)
		}
	}

	existing, err := s.FetchIssuerByS1C(ctx, issuer.S1C)
	if err != nil && err != ErrNotFound {
		return 0, err
	}

	if err == ErrNotFound {
		const insert = `INSERT INTO ISSUER (SUBJECT,NBEFORE,NAFTER,S1C,CERT,REV_INFO,CRL_INFO) VALUES(?,?,?,?,?,?,?)`
		return s.dialect.InsertReturningID(ctx, s.db, insert, issuer.Subject, issuer.NotBefore, issuer.NotAfter, issuer.S1C, issuer.Cert, revInfoJSON, crlInfoJSON)
	}

	update := s.dialect.Rewrite(`UPDATE ISSUER SET REV_INFO=?,CRL_INFO=? WHERE ID=?`)
	if _, err := s.db.ExecContext(ctx, update, revInfoJSON, crlInfoJSON, existing.ID); err != nil {
		return 0, s.dialect.TranslateError(err)
	}
	return existing.ID, nil
}

// FindCertID implements Backend.
func (s *SQLStore) FindCertID(ctx context.Context, iid int64, sn string) (int64, error) {
	var id int64
	err := s.stmtFindCertID.QueryRowContext(ctx, iid, sn).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, s.dialect.TranslateError(err)
	}
	return id, nil
}

// maxAllocateRetries bounds the number of times insertWithAllocatedID retries
// after losing a serialization race with a concurrent import against the
// same database (§5 permits several issuers to import concurrently).
const maxAllocateRetries = 5

// getMax returns the current maximum value of col in table within tx (0 if
// the table is empty), the building block insertWithAllocatedID uses to pick
// the next CERT.ID.
func getMax(ctx context.Context, tx *sql.Tx, table, col string) (int64, error) {
	var max sql.NullInt64
	row := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT MAX(%s) FROM %s`, col, table))
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return max.Int64, nil
}

// insertWithAllocatedID runs "SELECT MAX(ID) FROM CERT" and the given insert
// in one serializable transaction, so two imports against different issuers
// sharing a database cannot both read the same max and collide on the row
// they assign it to. A conflict is not an error to the caller: it is
// retried up to maxAllocateRetries times before giving up.
func (s *SQLStore) insertWithAllocatedID(ctx context.Context, query string, rest ...interface{}) (int64, error) {
	rewritten := s.dialect.Rewrite(query)

	var lastErr error
	for attempt := 0; attempt < maxAllocateRetries; attempt++ {
		id, err := s.tryInsertWithAllocatedID(ctx, rewritten, rest)
		if err == nil {
			return id, nil
		}
		if s.dialect.TranslateError(err) != ErrSerializationConflict {
			return 0, s.dialect.TranslateError(err)
		}
		lastErr = err
	}
	return 0, s.dialect.TranslateError(lastErr)
}

func (s *SQLStore) tryInsertWithAllocatedID(ctx context.Context, rewritten string, rest []interface{}) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	max, err := getMax(ctx, tx, "CERT", "ID")
	if err != nil {
		return 0, err
	}
	id := max + 1

	args := append([]interface{}{id}, rest...)
	if _, err := tx.ExecContext(ctx, rewritten, args...); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// InsertCertFull implements Backend.
func (s *SQLStore) InsertCertFull(ctx context.Context, c *Cert) (int64, error) {
	return s.insertWithAllocatedID(ctx, SQLInsertCertFull, c.IID, c.SN, c.Rev, c.RR, c.RT, c.RIT, c.LUpdate, c.NBefore, c.NAfter, c.Hash)
}

// UpdateCertFull implements Backend.
func (s *SQLStore) UpdateCertFull(ctx context.Context, c *Cert) error {
	_, err := s.stmtUpdateCertFull.ExecContext(ctx, c.LUpdate, c.NBefore, c.NAfter, c.Hash, c.ID)
	return s.dialect.TranslateError(err)
}

// InsertCertRevokedOnly implements Backend.
func (s *SQLStore) InsertCertRevokedOnly(ctx context.Context, c *Cert) (int64, error) {
	return s.insertWithAllocatedID(ctx, SQLInsertCertRevokedOnly, c.IID, c.SN, c.Rev, c.RR, c.RT, c.RIT, c.LUpdate)
}

// UpdateCertRevocation implements Backend.
func (s *SQLStore) UpdateCertRevocation(ctx context.Context, c *Cert) error {
	_, err := s.stmtUpdateCertRevocation.ExecContext(ctx, c.Rev, c.RR, c.RT, c.RIT, c.LUpdate, c.ID)
	return s.dialect.TranslateError(err)
}

// DeleteCert implements Backend.
func (s *SQLStore) DeleteCert(ctx context.Context, iid int64, sn string) error {
	_, err := s.stmtDeleteCert.ExecContext(ctx, iid, sn)
	return s.dialect.TranslateError(err)
}

// SweepStale implements Backend.
func (s *SQLStore) SweepStale(ctx context.Context, iid int64, importStart int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rewrite(SQLSweepStaleCerts), iid, importStart)
	if err != nil {
		return 0, s.dialect.TranslateError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: reading sweep row count: %w", err)
	}
	return n, nil
}
