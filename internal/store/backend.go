package store

import "context"

// Backend is the data-source collaborator the CRL Import Engine is built
// against (§4.G). SQLStore implements it over database/sql and a Dialect;
// MemoryStore implements it in-process, substituting for a real database
// connection in tests the same way an in-memory storage double substitutes
// for a real backend elsewhere in this codebase.
type Backend interface {
	// FetchIssuerByS1C looks up an issuer by its CA-cert SHA-1 fingerprint.
	// Returns ErrNotFound if no such issuer exists.
	FetchIssuerByS1C(ctx context.Context, s1c string) (*Issuer, error)

	// UpsertIssuer inserts a new issuer row or updates an existing one
	// (matched by S1C), returning the row's assigned ID.
	UpsertIssuer(ctx context.Context, issuer *Issuer) (int64, error)

	// FindCertID returns the server-assigned ID of the (iid, sn) row, or
	// ErrNotFound if it does not exist.
	FindCertID(ctx context.Context, iid int64, sn string) (int64, error)

	// InsertCertRevokedOnly inserts a revocation-only row (no nbefore/
	// nafter/hash): the shape used when a CRL entry is seen with no
	// corresponding certificate material. It allocates the row's ID itself
	// and returns it; callers never pass one in, so two imports against
	// different issuers sharing the same database cannot collide on ID
	// allocation (§5).
	InsertCertRevokedOnly(ctx context.Context, c *Cert) (int64, error)

	// UpdateCertRevocation updates the revocation columns of an existing row.
	UpdateCertRevocation(ctx context.Context, c *Cert) error

	// InsertCertFull inserts a row carrying full certificate metadata
	// (validity bounds + hash), rev=0. It allocates the row's ID itself and
	// returns it, for the same reason InsertCertRevokedOnly does.
	InsertCertFull(ctx context.Context, c *Cert) (int64, error)

	// UpdateCertFull updates the metadata columns (lupdate/nbefore/nafter/
	// hash) of an existing row without touching its revocation state.
	UpdateCertFull(ctx context.Context, c *Cert) error

	// DeleteCert removes the (iid, sn) row, e.g. for a removeFromCRL entry
	// in a delta CRL.
	DeleteCert(ctx context.Context, iid int64, sn string) error

	// SweepStale deletes every CERT row for iid with lupdate < importStart,
	// returning the number of rows removed. Only ever called after a full
	// CRL import.
	SweepStale(ctx context.Context, iid int64, importStart int64) (int64, error)

	// Close releases any resources (prepared statements, pooled
	// connections) this Backend acquired. Safe to call on every exit path,
	// including after a partial failure.
	Close() error
}
