// Package hashalgo enumerates the digest algorithms the responder's CERT.HASH
// column and the CertHash extension can be templated over.
package hashalgo

import (
	"crypto"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"hash"

	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"

	_ "golang.org/x/crypto/sha3" // registers SHA3-224..SHA3-512 into crypto.Hash
)

// HashAlgo identifies one of the closed set of supported digest algorithms.
type HashAlgo int

const (
	SHA1 HashAlgo = iota
	SHA224
	SHA256
	SHA384
	SHA512
	SHA3_224
	SHA3_256
	SHA3_384
	SHA3_512
)

type variant struct {
	name   string
	oid    asn1.ObjectIdentifier
	length int
	hash   crypto.Hash
}

var variants = map[HashAlgo]variant{
	SHA1:     {"SHA-1", asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}, 20, crypto.SHA1},
	SHA224:   {"SHA-224", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 4}, 28, crypto.SHA224},
	SHA256:   {"SHA-256", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}, 32, crypto.SHA256},
	SHA384:   {"SHA-384", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}, 48, crypto.SHA384},
	SHA512:   {"SHA-512", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}, 64, crypto.SHA512},
	SHA3_224: {"SHA3-224", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 7}, 28, crypto.SHA3_224},
	SHA3_256: {"SHA3-256", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 8}, 32, crypto.SHA3_256},
	SHA3_384: {"SHA3-384", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 9}, 48, crypto.SHA3_384},
	SHA3_512: {"SHA3-512", asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 10}, 64, crypto.SHA3_512},
}

// All returns every supported variant, in declaration order.
func All() []HashAlgo {
	return []HashAlgo{SHA1, SHA224, SHA256, SHA384, SHA512, SHA3_224, SHA3_256, SHA3_384, SHA3_512}
}

// Name returns the display name of the algorithm, e.g. "SHA-256".
func (h HashAlgo) Name() string {
	return variants[h].name
}

// OID returns the algorithm's AlgorithmIdentifier OID.
func (h HashAlgo) OID() asn1.ObjectIdentifier {
	return variants[h].oid
}

// Length returns the digest output length in bytes.
func (h HashAlgo) Length() int {
	return variants[h].length
}

// New returns a fresh hash.Hash for streaming digest computation.
func (h HashAlgo) New() (hash.Hash, error) {
	v, ok := variants[h]
	if !ok || !v.hash.Available() {
		return nil, fmt.Errorf("hashalgo: %v is not available in this build", h)
	}
	return v.hash.New(), nil
}

// Sum returns the raw digest of data under this algorithm.
func (h HashAlgo) Sum(data []byte) ([]byte, error) {
	v, ok := variants[h]
	if !ok || !v.hash.Available() {
		return nil, fmt.Errorf("hashalgo: %v is not available in this build", h)
	}
	hasher := v.hash.New()
	hasher.Write(data)
	return hasher.Sum(nil), nil
}

// Base64Hash digests data and returns the standard (padded) base64 encoding
// of the result, matching Bouncy Castle's default encoder.
func (h HashAlgo) Base64Hash(data []byte) (string, error) {
	sum, err := h.Sum(data)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sum), nil
}

// ByName resolves a display name (e.g. "SHA-256") back to its HashAlgo.
func ByName(name string) (HashAlgo, error) {
	for id, v := range variants {
		if v.name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("hashalgo: unknown algorithm %q", name)
}

func (h HashAlgo) String() string {
	if v, ok := variants[h]; ok {
		return v.name
	}
	return fmt.Sprintf("HashAlgo(%d)", int(h))
}
