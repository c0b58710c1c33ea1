// Package store owns the ISSUER/CERT row shapes, the canonical SQL text that
// operates on them, and the dialect adapters that translate that text for a
// concrete database driver.
package store

import "math"

// SentinelNotBefore and SentinelNotAfter mark a Cert row whose validity
// bounds are unknown (serial-only ingestion, e.g. from a .serials file).
const (
	SentinelNotBefore int64 = 0
	SentinelNotAfter  int64 = math.MaxInt64
)

// Issuer mirrors one row of the ISSUER table (§3).
type Issuer struct {
	ID        int64
	Subject   string // RFC 4519 string form of the CA subject DN
	NotBefore int64
	NotAfter  int64
	S1C       string // base64 SHA-1 fingerprint of the DER CA cert; lookup key
	Cert      string // base64 DER of the CA cert
	RevInfo   *RevInfo
	CRLInfo   CRLInfo
}

// RevInfo encodes the CA's own revocation descriptor, when the CA itself has
// been revoked by its parent.
type RevInfo struct {
	Reason         int
	RevocationTime int64
	InvalidityTime *int64
}

// CRLInfo is the monotonicity/embedding record kept per issuer.
type CRLInfo struct {
	CRLNumber     int64
	BaseCRLNumber *int64 // present iff the last accepted CRL was delta
	ThisUpdate    int64
	NextUpdate    int64
	CRLID         []byte // DER SEQUENCE{ [0] url?, [1] crlNumber, [2] thisUpdate }
}

// Cert mirrors one row of the CERT table (§3).
type Cert struct {
	ID      int64
	IID     int64
	SN      string // lowercase base-16, positive magnitude, no "0x"
	Rev     bool
	RR      *int
	RT      *int64
	RIT     *int64
	LUpdate int64
	NBefore int64
	NAfter  int64
	Hash    *string // base64 digest; nil when only the serial is known
}

// Canonical SQL text (§4.E). Dialects rewrite placeholders only; no limit
// clause is added, and the column/table shape itself never varies.
const (
	SQLInsertCertFull = `INSERT INTO CERT (ID,IID,SN,REV,RR,RT,RIT,LUPDATE,NBEFORE,NAFTER,HASH) VALUES(?,?,?,?,?,?,?,?,?,?,?)`
	SQLUpdateCertFull = `UPDATE CERT SET LUPDATE=?,NBEFORE=?,NAFTER=?,HASH=? WHERE ID=?`

	SQLInsertCertRevokedOnly = `INSERT INTO CERT (ID,IID,SN,REV,RR,RT,RIT,LUPDATE) VALUES(?,?,?,?,?,?,?,?)`
	SQLUpdateCertRevocation  = `UPDATE CERT SET REV=?,RR=?,RT=?,RIT=?,LUPDATE=? WHERE ID=?`

	SQLDeleteCert = `DELETE FROM CERT WHERE IID=? AND SN=?`
	SQLFindCertID = `SELECT ID FROM CERT WHERE IID=? AND SN=?`

	SQLFindIssuerByS1C = `SELECT ID,REV_INFO,CRL_INFO FROM ISSUER WHERE S1C=?`

	SQLSweepStaleCerts = `DELETE FROM CERT WHERE IID=? AND LUPDATE<?`
)
