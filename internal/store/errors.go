package store

import "errors"

// ErrDuplicateKey is returned by Backend operations when a dialect's driver
// reports a unique-constraint violation (e.g. re-inserting an existing
// (iid, sn) pair). The ingest engine never expects this in practice, since it
// always checks FindCertID first, but dialects still translate it so callers
// never have to sniff driver-specific error types.
var ErrDuplicateKey = errors.New("store: duplicate key")

// ErrConnection marks a translated connection/transport-level failure.
var ErrConnection = errors.New("store: connection error")

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// ErrSerializationConflict is returned when a dialect's driver reports that a
// serializable transaction could not be committed because another
// transaction changed data it read — the signal SQLStore's CERT-ID
// allocation retries on, rather than racing two concurrent imports against
// the same MAX(ID) read.
var ErrSerializationConflict = errors.New("store: serialization conflict, retry")
