// Package crlsource parses a CRL file and exposes the fields and revoked
// entries the import engine needs: issuer, validity window, CRL number,
// delta-base linkage, and a pull-style iterator over revoked certificates.
package crlsource

import (
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"math/big"
	"os"
	"time"
)

// crlNumberOID and deltaCRLIndicatorOID are the two CRL extensions the
// parser must understand to tell a full CRL from a delta one.
var (
	crlNumberOID         = asn1.ObjectIdentifier{2, 5, 29, 20}
	deltaCRLIndicatorOID = asn1.ObjectIdentifier{2, 5, 29, 27}
	certificateIssuerOID = asn1.ObjectIdentifier{2, 5, 29, 29}
	invalidityDateOID    = asn1.ObjectIdentifier{2, 5, 29, 24}
	reasonCodeOID        = asn1.ObjectIdentifier{2, 5, 29, 21}
)

// ReasonRemoveFromCRL is the CRLReason value (8) used for delta-CRL entries
// that undo a previous revocation rather than revoking a certificate.
const ReasonRemoveFromCRL = 8

// ErrMissingCRLNumber is returned by Open when the CRL carries no crlNumber
// extension; §4.C requires this extension and treats its absence as fatal.
var ErrMissingCRLNumber = errors.New("crlsource: CRL carries no crlNumber extension")

// RevokedEntry is one entry of the revoked-cert sequence (§4.C).
type RevokedEntry struct {
	SerialNumber      *big.Int
	RevocationTime    time.Time
	InvalidityDate    *time.Time
	Reason            int
	CertificateIssuer *pkix.Name // non-nil iff the entry carries an indirect-CRL issuer extension
}

// rawRevokedCertificate is the wire shape of one RevokedCertificate element:
// SEQUENCE { userCertificate CertificateSerialNumber, revocationDate Time,
// crlEntryExtensions Extensions OPTIONAL }.
type rawRevokedCertificate struct {
	SerialNumber   *big.Int
	RevocationTime time.Time
	Extensions     []pkix.Extension `asn1:"optional"`
}

// CRL is a parsed, not-yet-verified revocation list. Every field except the
// revoked-entry iterator is available immediately after Open; signature
// verification and entry iteration are separate steps because §4.C requires
// verification to happen first. CRL keeps the file open across both steps:
// Close releases it.
type CRL struct {
	f *os.File

	Issuer        pkix.Name
	ThisUpdate    time.Time
	NextUpdate    time.Time
	CRLNumber     *big.Int
	BaseCRLNumber *big.Int // nil unless IsDelta
	IsDelta       bool
	Extensions    []pkix.Extension

	hashStart, hashEnd int64 // byte range of the tag+length+content of tbsCertList, for signature verification
	sigAlgorithm       asn1.ObjectIdentifier
	signature          []byte

	revokedStart, revokedEnd int64 // byte range of revokedCertificates' content; zero length if absent
}

// Open parses the CertificateList envelope and the small, fixed-size
// TBSCertList fields (issuer, validity window, crlNumber, delta linkage,
// crlExtensions) eagerly, but never reads revokedCertificates into memory:
// it records that field's byte range in the file and leaves it for
// RevokedCertificates to window over one entry at a time. Signature
// verification streams tbsCertList's raw bytes through a digest the same
// way, so the only memory Open or VerifySignature ever hold at once is a
// handful of small headers plus one read buffer — CRLs of hundreds of
// megabytes never get materialized.
//
// Open does not verify the signature and does not decode revoked entries;
// see CRL.VerifySignature and CRL.RevokedCertificates.
func Open(ctx context.Context, path string) (*CRL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	opened := false
	defer func() {
		if !opened {
			f.Close()
		}
	}()

	cur := newDERCursor(f)

	// CertificateList ::= SEQUENCE { tbsCertList, signatureAlgorithm, signatureValue }
	if tag, _, _, err := cur.readHeader(); err != nil {
		return nil, wrapParseErr(path, "reading CertificateList header", err)
	} else if tag != 0x30 {
		return nil, fmt.Errorf("crlsource: parsing %s: expected CertificateList SEQUENCE, got tag 0x%x", path, tag)
	}

	tbsStart := cur.pos
	tag, tbsLen, _, err := cur.readHeader()
	if err != nil {
		return nil, wrapParseErr(path, "reading tbsCertList header", err)
	}
	if tag != 0x30 {
		return nil, fmt.Errorf("crlsource: parsing %s: expected TBSCertList SEQUENCE, got tag 0x%x", path, tag)
	}
	tbsContentEnd := cur.pos + int64(tbsLen)

	// version ::= INTEGER OPTIONAL (DEFAULT v1, so present only for v2 CRLs)
	peek, err := cur.peekTag()
	if err != nil {
		return nil, wrapParseErr(path, "peeking version", err)
	}
	if peek == 0x02 {
		if _, _, _, err := cur.readTLV(); err != nil {
			return nil, wrapParseErr(path, "reading version", err)
		}
	}

	// signature AlgorithmIdentifier — the inner copy is redundant with the
	// outer one read after tbsCertList; only the outer copy is used to pick
	// the verification algorithm, matching what actually gets signed.
	if _, _, _, err := cur.readTLV(); err != nil {
		return nil, wrapParseErr(path, "reading inner signature algorithm", err)
	}

	_, issuerHeader, issuerContent, err := cur.readTLV()
	if err != nil {
		return nil, wrapParseErr(path, "reading issuer", err)
	}
	var rdn pkix.RDNSequence
	if _, err := asn1.Unmarshal(append(issuerHeader, issuerContent...), &rdn); err != nil {
		return nil, wrapParseErr(path, "decoding issuer", err)
	}
	var issuer pkix.Name
	issuer.FillFromRDNSequence(&rdn)

	thisUpdate, err := cur.readTime()
	if err != nil {
		return nil, wrapParseErr(path, "reading thisUpdate", err)
	}

	var nextUpdate time.Time
	if peek, err = cur.peekTag(); err != nil {
		return nil, wrapParseErr(path, "peeking nextUpdate", err)
	} else if peek == 0x17 || peek == 0x18 {
		if nextUpdate, err = cur.readTime(); err != nil {
			return nil, wrapParseErr(path, "reading nextUpdate", err)
		}
	}

	// revokedCertificates ::= SEQUENCE OF RevokedCertificate OPTIONAL — the
	// field this whole redesign exists to avoid materializing. Record its
	// byte range and skip over it without reading the content.
	var revokedStart, revokedEnd int64
	if cur.pos < tbsContentEnd {
		if peek, err = cur.peekTag(); err != nil {
			return nil, wrapParseErr(path, "peeking revokedCertificates", err)
		}
		if peek == 0x30 {
			_, length, _, err := cur.readHeader()
			if err != nil {
				return nil, wrapParseErr(path, "reading revokedCertificates header", err)
			}
			revokedStart = cur.pos
			revokedEnd = revokedStart + int64(length)
			if err := cur.skip(length); err != nil {
				return nil, wrapParseErr(path, "skipping revokedCertificates", err)
			}
		}
	}

	// crlExtensions ::= [0] EXPLICIT Extensions OPTIONAL
	var extensions []pkix.Extension
	if cur.pos < tbsContentEnd {
		if peek, err = cur.peekTag(); err != nil {
			return nil, wrapParseErr(path, "peeking crlExtensions", err)
		}
		if peek == 0xA0 {
			_, _, extContent, err := cur.readTLV()
			if err != nil {
				return nil, wrapParseErr(path, "reading crlExtensions", err)
			}
			if _, err := asn1.Unmarshal(extContent, &extensions); err != nil {
				return nil, wrapParseErr(path, "decoding crlExtensions", err)
			}
		}
	}

	if cur.pos != tbsContentEnd {
		return nil, fmt.Errorf("crlsource: parsing %s: tbsCertList length mismatch (at %d, declared end %d)", path, cur.pos, tbsContentEnd)
	}

	_, sigAlgHeader, sigAlgContent, err := cur.readTLV()
	if err != nil {
		return nil, wrapParseErr(path, "reading signatureAlgorithm", err)
	}
	var sigAlg pkix.AlgorithmIdentifier
	if _, err := asn1.Unmarshal(append(sigAlgHeader, sigAlgContent...), &sigAlg); err != nil {
		return nil, wrapParseErr(path, "decoding signatureAlgorithm", err)
	}

	_, sigHeader, sigContent, err := cur.readTLV()
	if err != nil {
		return nil, wrapParseErr(path, "reading signatureValue", err)
	}
	var sigBits asn1.BitString
	if _, err := asn1.Unmarshal(append(sigHeader, sigContent...), &sigBits); err != nil {
		return nil, wrapParseErr(path, "decoding signatureValue", err)
	}

	c := &CRL{
		f:            f,
		Issuer:       issuer,
		ThisUpdate:   thisUpdate,
		NextUpdate:   nextUpdate,
		Extensions:   extensions,
		hashStart:    tbsStart,
		hashEnd:      tbsContentEnd,
		sigAlgorithm: sigAlg.Algorithm,
		signature:    sigBits.RightAlign(),
		revokedStart: revokedStart,
		revokedEnd:   revokedEnd,
	}

	if err := c.findCRLNumberExtension(); err != nil {
		return nil, err
	}
	if base, ok, err := c.findDeltaBase(); err != nil {
		return nil, err
	} else if ok {
		c.IsDelta = true
		c.BaseCRLNumber = base
	}

	opened = true
	return c, nil
}

func wrapParseErr(path, step string, err error) error {
	return fmt.Errorf("crlsource: parsing %s: %s: %w", path, step, err)
}

// readTime decodes a Time ::= CHOICE { utcTime, generalizedTime } field,
// picking the asn1 unmarshal form its actual tag calls for.
func (c *derCursor) readTime() (time.Time, error) {
	tag, header, content, err := c.readTLV()
	if err != nil {
		return time.Time{}, err
	}
	full := append(header, content...)
	var t time.Time
	switch tag {
	case 0x17:
		if _, err := asn1.Unmarshal(full, &t); err != nil {
			return time.Time{}, err
		}
	case 0x18:
		if _, err := asn1.UnmarshalWithParams(full, &t, "generalized"); err != nil {
			return time.Time{}, err
		}
	default:
		return time.Time{}, fmt.Errorf("expected UTCTime/GeneralizedTime, got tag 0x%x", tag)
	}
	return t, nil
}

func (c *CRL) findCRLNumberExtension() error {
	for _, ext := range c.Extensions {
		if !ext.Id.Equal(crlNumberOID) {
			continue
		}
		var n *big.Int
		if _, err := asn1.Unmarshal(ext.Value, &n); err != nil {
			return fmt.Errorf("crlsource: decoding crlNumber extension: %w", err)
		}
		c.CRLNumber = n
		return nil
	}
	return ErrMissingCRLNumber
}

func (c *CRL) findDeltaBase() (*big.Int, bool, error) {
	for _, ext := range c.Extensions {
		if !ext.Id.Equal(deltaCRLIndicatorOID) {
			continue
		}
		var n *big.Int
		if _, err := asn1.Unmarshal(ext.Value, &n); err != nil {
			return nil, false, fmt.Errorf("crlsource: decoding deltaCRLIndicator extension: %w", err)
		}
		return n, true, nil
	}
	return nil, false, nil
}

// VerifySignature verifies the CRL's signature against signer, the CA or
// delegated CRL-signer certificate chosen by the import engine in §4.F
// step 1. Per §4.C this must be called, and must succeed, before
// RevokedCertificates is consumed. It streams tbsCertList's raw bytes
// through the appropriate digest rather than holding them in one buffer.
func (c *CRL) VerifySignature(ctx context.Context, signer *x509.Certificate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	algo, ok := signatureAlgorithms[c.sigAlgorithm.String()]
	if !ok {
		return fmt.Errorf("crlsource: unsupported signatureAlgorithm %s", c.sigAlgorithm.String())
	}
	digest, err := c.hashTBSCertList(algo)
	if err != nil {
		return err
	}
	return verifySignature(signer.PublicKey, c.sigAlgorithm, digest, c.signature)
}

// Close releases the CRL's open file handle. Safe to call more than once.
func (c *CRL) Close() error {
	return c.f.Close()
}

// RevokedCertificates returns a single-pass iterator over the revoked
// entries, windowing one RevokedCertificate TLV at a time out of the file
// rather than holding the whole sequence in memory. ctx is checked before
// each entry is read; a cancellation surfaces through Err after Next
// returns false.
func (c *CRL) RevokedCertificates(ctx context.Context) *EntryIterator {
	return &EntryIterator{ctx: ctx, f: c.f, pos: c.revokedStart, end: c.revokedEnd}
}

// EntryIterator is a single-pass, explicitly-closeable pull iterator over a
// CRL's revoked entries, reading one entry's TLV from the underlying file on
// each Next call.
type EntryIterator struct {
	ctx    context.Context
	f      *os.File
	pos    int64
	end    int64
	cur    RevokedEntry
	err    error
	closed bool
}

// Next decodes the next revoked entry, returning false when exhausted, after
// Close, on context cancellation, or on a decode error — callers must check
// Err once Next returns false to distinguish exhaustion from failure.
func (it *EntryIterator) Next() bool {
	if it.closed || it.err != nil || it.pos >= it.end {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		return false
	}

	if _, err := it.f.Seek(it.pos, io.SeekStart); err != nil {
		it.err = fmt.Errorf("crlsource: seeking to revoked entry: %w", err)
		return false
	}
	cur := newDERCursor(it.f)
	cur.pos = it.pos

	tag, header, content, err := cur.readTLV()
	if err != nil {
		it.err = fmt.Errorf("crlsource: reading revoked entry: %w", err)
		return false
	}
	if tag != 0x30 {
		it.err = fmt.Errorf("crlsource: revoked entry has unexpected tag 0x%x", tag)
		return false
	}

	var raw rawRevokedCertificate
	if _, err := asn1.Unmarshal(append(header, content...), &raw); err != nil {
		it.err = fmt.Errorf("crlsource: decoding revoked entry: %w", err)
		return false
	}

	entry := RevokedEntry{
		SerialNumber:   raw.SerialNumber,
		RevocationTime: raw.RevocationTime,
	}
	for _, ext := range raw.Extensions {
		switch {
		case ext.Id.Equal(reasonCodeOID):
			var code asn1.Enumerated
			if _, err := asn1.Unmarshal(ext.Value, &code); err != nil {
				it.err = fmt.Errorf("crlsource: decoding reasonCode for serial %x: %w", raw.SerialNumber, err)
				return false
			}
			entry.Reason = int(code)
		case ext.Id.Equal(certificateIssuerOID):
			var name pkix.RDNSequence
			if _, err := asn1.Unmarshal(ext.Value, &name); err != nil {
				it.err = fmt.Errorf("crlsource: decoding certificateIssuer for serial %x: %w", raw.SerialNumber, err)
				return false
			}
			var pn pkix.Name
			pn.FillFromRDNSequence(&name)
			entry.CertificateIssuer = &pn
		case ext.Id.Equal(invalidityDateOID):
			var t time.Time
			if _, err := asn1.UnmarshalWithParams(ext.Value, &t, "generalized"); err != nil {
				it.err = fmt.Errorf("crlsource: decoding invalidityDate for serial %x: %w", raw.SerialNumber, err)
				return false
			}
			entry.InvalidityDate = &t
		}
	}

	it.cur = entry
	it.pos = cur.pos
	return true
}

// Entry returns the entry Next most recently advanced to.
func (it *EntryIterator) Entry() RevokedEntry {
	return it.cur
}

// Err returns the first error encountered during iteration, including
// context cancellation; nil if iteration ran to exhaustion.
func (it *EntryIterator) Err() error {
	return it.err
}

// Close releases the iterator. Safe to call multiple times. It does not
// close the underlying file — CRL.Close owns that, since VerifySignature and
// RevokedCertificates share the same handle.
func (it *EntryIterator) Close() error {
	it.closed = true
	return nil
}
