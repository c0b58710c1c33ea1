// Package template precomputes the byte-exact DER prefixes the OCSP
// responder needs for its per-response extensions, so that the hot path
// reduces to a copy plus a timestamp write.
package template

import (
	"encoding/asn1"
	"fmt"
	"time"

	"github.com/dwabisch/ocspingest/internal/der"
	"github.com/dwabisch/ocspingest/internal/hashalgo"
)

// CertHashOID is the id-isismtt-at-certHash OID, frozen per DESIGN.md's
// open-question decision.
var CertHashOID = asn1.ObjectIdentifier{1, 3, 36, 8, 3, 13}

// InvalidityDateOID is the standard X.509 invalidityDate extension OID.
var InvalidityDateOID = asn1.ObjectIdentifier{2, 5, 29, 24}

// ArchiveCutoffOID is the standard OCSP archiveCutoff extension OID.
var ArchiveCutoffOID = asn1.ObjectIdentifier{1, 3, 6, 1, 5, 5, 7, 48, 1, 6}

type pkixExtension struct {
	Id       asn1.ObjectIdentifier
	Critical bool `asn1:"optional"`
	Value    []byte
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

type certHash struct {
	HashAlgorithm   algorithmIdentifier
	CertificateHash []byte
}

// Revoked-info literal prefixes, byte-exact.
const (
	revokedInfoNoReasonLen   = 19
	revokedInfoWithReasonLen = 24
)

var revokedInfoNoReasonHeader = []byte{0xA1, 0x11}
var revokedInfoWithReasonHeader = []byte{0xA1, 0x16}
var revokedInfoReasonTrailerPrefix = []byte{0xA0, 0x03, 0x0A, 0x01}

// Cache holds the precomputed DER prefixes. It is built once and is
// immutable thereafter, so it is safe for concurrent use by any number of
// responders without locking.
type Cache struct {
	certHashPrefix map[hashalgo.HashAlgo][]byte

	invalidityDateBlob []byte
	archiveCutoffBlob  []byte
}

// Build constructs a Cache for every registered hash variant. It allocates
// freely — this runs once at process start, never on the OCSP hot path.
func Build() (*Cache, error) {
	c := &Cache{
		certHashPrefix: make(map[hashalgo.HashAlgo][]byte, len(hashalgo.All())),
	}

	for _, algo := range hashalgo.All() {
		full, err := marshalCertHashExtension(algo, make([]byte, algo.Length()))
		if err != nil {
			return nil, fmt.Errorf("template: building CertHash prefix for %v: %w", algo, err)
		}
		c.certHashPrefix[algo] = full[:len(full)-algo.Length()]
	}

	invBlob, err := marshalExtension(InvalidityDateOID, false, make([]byte, der.GeneralizedTimeLen))
	if err != nil {
		return nil, fmt.Errorf("template: building invalidityDate blob: %w", err)
	}
	c.invalidityDateBlob = invBlob

	cutoffBlob, err := marshalExtension(ArchiveCutoffOID, false, make([]byte, der.GeneralizedTimeLen))
	if err != nil {
		return nil, fmt.Errorf("template: building archiveCutoff blob: %w", err)
	}
	c.archiveCutoffBlob = cutoffBlob

	return c, nil
}

func marshalCertHashExtension(algo hashalgo.HashAlgo, zeroHash []byte) ([]byte, error) {
	inner, err := asn1.Marshal(certHash{
		HashAlgorithm:   algorithmIdentifier{Algorithm: algo.OID()},
		CertificateHash: zeroHash,
	})
	if err != nil {
		return nil, err
	}
	return marshalExtension(CertHashOID, false, inner)
}

func marshalExtension(oid asn1.ObjectIdentifier, critical bool, value []byte) ([]byte, error) {
	return asn1.Marshal(pkixExtension{Id: oid, Critical: critical, Value: value})
}

// GetCertHashExtension returns the byte-exact DER encoding of the CertHash
// extension for algo carrying hash. hash must be exactly algo.Length() bytes
// long; a mismatch is a programmer error.
func (c *Cache) GetCertHashExtension(algo hashalgo.HashAlgo, hash []byte) ([]byte, error) {
	if len(hash) != algo.Length() {
		return nil, fmt.Errorf("template: GetCertHashExtension: hash length %d does not match %v (%d)", len(hash), algo, algo.Length())
	}
	prefix, ok := c.certHashPrefix[algo]
	if !ok {
		return nil, fmt.Errorf("template: GetCertHashExtension: no prefix cached for %v", algo)
	}
	out := make([]byte, len(prefix)+len(hash))
	copy(out, prefix)
	copy(out[len(prefix):], hash)
	return out, nil
}

// GetInvalidityDateExtension returns the byte-exact DER encoding of the
// invalidityDate extension for the given instant, truncated to whole seconds UTC.
func (c *Cache) GetInvalidityDateExtension(at time.Time) ([]byte, error) {
	return c.stampTrailingTime(c.invalidityDateBlob, at)
}

// GetArchiveCutoffExtension returns the byte-exact DER encoding of the
// archiveCutoff extension for the given instant.
func (c *Cache) GetArchiveCutoffExtension(at time.Time) ([]byte, error) {
	return c.stampTrailingTime(c.archiveCutoffBlob, at)
}

func (c *Cache) stampTrailingTime(blob []byte, at time.Time) ([]byte, error) {
	out := make([]byte, len(blob))
	copy(out, blob)
	if err := der.WriteGeneralizedTime(at, out, len(out)-der.GeneralizedTimeLen); err != nil {
		return nil, fmt.Errorf("template: stamping time: %w", err)
	}
	return out, nil
}

// GetEncodeRevokedInfo encodes the `[1] revokedInfo` choice of a
// SingleResponse: 19 bytes when reason is nil, 24 bytes when reason is set.
func GetEncodeRevokedInfo(reason *byte, revokedAt time.Time) ([]byte, error) {
	if reason == nil {
		out := make([]byte, revokedInfoNoReasonLen)
		copy(out, revokedInfoNoReasonHeader)
		if err := der.WriteGeneralizedTime(revokedAt, out, len(revokedInfoNoReasonHeader)); err != nil {
			return nil, fmt.Errorf("template: GetEncodeRevokedInfo: %w", err)
		}
		return out, nil
	}

	out := make([]byte, revokedInfoWithReasonLen)
	copy(out, revokedInfoWithReasonHeader)
	if err := der.WriteGeneralizedTime(revokedAt, out, len(revokedInfoWithReasonHeader)); err != nil {
		return nil, fmt.Errorf("template: GetEncodeRevokedInfo: %w", err)
	}
	trailerOffset := len(revokedInfoWithReasonHeader) + der.GeneralizedTimeLen
	copy(out[trailerOffset:], revokedInfoReasonTrailerPrefix)
	out[len(out)-1] = *reason
	return out, nil
}
