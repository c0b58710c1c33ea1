package crlsource

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

type sigAlgo struct {
	hash crypto.Hash
	kind string // "rsa" or "ecdsa"
}

// signatureAlgorithms maps the signatureAlgorithm OID carried by a
// CertificateList to the digest and key family needed to verify it, the same
// registry-by-OID idiom internal/hashalgo uses for CertHash digests. RSASSA-PSS
// is not in this table: its AlgorithmIdentifier parameters encode the salt
// length and MGF hash separately, and no CRL in the corpus or its test
// fixtures is PSS-signed, so there is nothing to ground that branch on.
var signatureAlgorithms = map[string]sigAlgo{
	"1.2.840.113549.1.1.5":  {crypto.SHA1, "rsa"},
	"1.2.840.113549.1.1.11": {crypto.SHA256, "rsa"},
	"1.2.840.113549.1.1.12": {crypto.SHA384, "rsa"},
	"1.2.840.113549.1.1.13": {crypto.SHA512, "rsa"},
	"1.2.840.10045.4.1":     {crypto.SHA1, "ecdsa"},
	"1.2.840.10045.4.3.2":   {crypto.SHA256, "ecdsa"},
	"1.2.840.10045.4.3.3":   {crypto.SHA384, "ecdsa"},
	"1.2.840.10045.4.3.4":   {crypto.SHA512, "ecdsa"},
}

// hashTBSCertList streams the raw tbsCertList bytes (the exact octets the
// issuer signed) through the digest the signatureAlgorithm OID selects,
// reading the file in fixed-size chunks rather than loading the whole
// sequence into one buffer. The range includes revokedCertificates, so its
// length grows with the number of revoked entries.
func (c *CRL) hashTBSCertList(algo sigAlgo) ([]byte, error) {
	if !algo.hash.Available() {
		return nil, fmt.Errorf("crlsource: digest %v not available in this build", algo.hash)
	}
	if _, err := c.f.Seek(c.hashStart, io.SeekStart); err != nil {
		return nil, fmt.Errorf("crlsource: seeking to tbsCertList: %w", err)
	}

	h := algo.hash.New()
	buf := make([]byte, 32*1024)
	remaining := c.hashEnd - c.hashStart
	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}
		if _, err := io.ReadFull(c.f, buf[:n]); err != nil {
			return nil, fmt.Errorf("crlsource: reading tbsCertList: %w", err)
		}
		h.Write(buf[:n])
		remaining -= n
	}
	return h.Sum(nil), nil
}

// verifySignature checks digest/signature against pub per the algorithm OID
// carried by the CertificateList's signatureAlgorithm field, dispatching on
// the signer's actual key type the way crypto/x509.CheckSignature does.
func verifySignature(pub interface{}, algOID asn1.ObjectIdentifier, digest, signature []byte) error {
	algo, ok := signatureAlgorithms[algOID.String()]
	if !ok {
		return fmt.Errorf("crlsource: unsupported signatureAlgorithm %s", algOID.String())
	}

	switch key := pub.(type) {
	case *rsa.PublicKey:
		if algo.kind != "rsa" {
			return fmt.Errorf("crlsource: signatureAlgorithm %s does not match an RSA signer key", algOID.String())
		}
		return rsa.VerifyPKCS1v15(key, algo.hash, digest, signature)
	case *ecdsa.PublicKey:
		if algo.kind != "ecdsa" {
			return fmt.Errorf("crlsource: signatureAlgorithm %s does not match an ECDSA signer key", algOID.String())
		}
		if !ecdsa.VerifyASN1(key, digest, signature) {
			return errors.New("crlsource: ECDSA signature verification failed")
		}
		return nil
	default:
		return fmt.Errorf("crlsource: unsupported signer public key type %T", pub)
	}
}
