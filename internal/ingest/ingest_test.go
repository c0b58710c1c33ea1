package ingest

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dwabisch/ocspingest/internal/config"
	"github.com/dwabisch/ocspingest/internal/hashalgo"
	"github.com/dwabisch/ocspingest/internal/store"
)

// deltaCRLIndicatorOID mirrors crlsource's unexported OID for the purpose of
// constructing delta-CRL fixtures.
var deltaCRLIndicatorOID = asn1.ObjectIdentifier{2, 5, 29, 27}

type fixtureCA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey
}

func newFixtureCA(t *testing.T) fixtureCA {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "rootca1", Organization: []string{"xipki"}, Country: []string{"DE"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour * 24 * 365),
		KeyUsage:     x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:         true,
		SubjectKeyId: []byte{0xAA, 0xBB, 0xCC},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return fixtureCA{cert: cert, key: key}
}

func (ca fixtureCA) writeBaseDir(t *testing.T, crlTmpl *x509.RevocationList) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca.crt"), ca.cert.Raw, 0o644))

	crlDER, err := x509.CreateRevocationList(rand.Reader, crlTmpl, ca.cert, ca.key)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ca.crl"), crlDER, 0o644))
	return dir
}

func testOptions() Options {
	return Options{HashAlgo: hashalgo.SHA256, ImportConfig: config.DefaultImportOptions()}
}

// Scenario 1: first full CRL with no entries inserts the issuer row.
func Test_Scenario1_FirstFullCRLInsertsIssuer(t *testing.T) {
	ca := newFixtureCA(t)
	dir := ca.writeBaseDir(t, &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	backend := store.NewMemoryStore()
	ok, err := ImportCRLToOCSPDB(context.Background(), dir, backend, testOptions())
	require.NoError(t, err)
	require.True(t, ok)

	issuer, err := backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)
	require.EqualValues(t, 1, issuer.CRLInfo.CRLNumber)
	require.Empty(t, backend.Snapshot(issuer.ID))
}

// Scenario 2: re-importing the same CRL fails with CrlNotNewer, state
// unchanged.
func Test_Scenario2_ReimportSameCRLIsRejected(t *testing.T) {
	ca := newFixtureCA(t)
	crlTmpl := &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	dir := ca.writeBaseDir(t, crlTmpl)

	backend := store.NewMemoryStore()
	ok, err := ImportCRLToOCSPDB(context.Background(), dir, backend, testOptions())
	require.NoError(t, err)
	require.True(t, ok)

	before, err := backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)

	ok, err = ImportCRLToOCSPDB(context.Background(), dir, backend, testOptions())
	require.False(t, ok)
	require.Error(t, err)
	var ierr *ImportError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, CrlNotNewer, ierr.Kind)

	after, err := backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)
	require.Equal(t, before, after)
}

// Scenario 3: a delta CRL with one removeFromCRL entry deletes the matching row.
func Test_Scenario3_DeltaRemoveFromCRLDeletesRow(t *testing.T) {
	ca := newFixtureCA(t)
	fullDir := ca.writeBaseDir(t, &x509.RevocationList{
		Number:     big.NewInt(1),
		ThisUpdate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(0xDEADBEEF), RevocationTime: time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)},
		},
	})

	backend := store.NewMemoryStore()
	ok, err := ImportCRLToOCSPDB(context.Background(), fullDir, backend, testOptions())
	require.NoError(t, err)
	require.True(t, ok)

	issuer, err := backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)
	_, err = backend.FindCertID(context.Background(), issuer.ID, "deadbeef")
	require.NoError(t, err)

	baseNum, err := asn1.Marshal(big.NewInt(1))
	require.NoError(t, err)
	deltaDir := ca.writeBaseDir(t, &x509.RevocationList{
		Number:     big.NewInt(2),
		ThisUpdate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
		ExtraExtensions: []pkix.Extension{
			{Id: deltaCRLIndicatorOID, Value: baseNum},
		},
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(0xDEADBEEF), RevocationTime: time.Date(2024, 1, 2, 1, 0, 0, 0, time.UTC), ReasonCode: 8},
		},
	})

	ok, err = ImportCRLToOCSPDB(context.Background(), deltaDir, backend, testOptions())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = backend.FindCertID(context.Background(), issuer.ID, "deadbeef")
	require.ErrorIs(t, err, store.ErrNotFound)

	issuer, err = backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)
	require.EqualValues(t, 2, issuer.CRLInfo.CRLNumber)
	require.NotNil(t, issuer.CRLInfo.BaseCRLNumber)
	require.EqualValues(t, 1, *issuer.CRLInfo.BaseCRLNumber)
}

// Scenario 4: a full CRL with two revoked entries plus certs/ directory
// material produces four rows with the expected shapes.
func Test_Scenario4_FullCRLWithCertsDirectory(t *testing.T) {
	ca := newFixtureCA(t)

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0x03),
		Subject:      pkix.Name{CommonName: "leaf03"},
		Issuer:       ca.cert.Subject,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		AuthorityKeyId: ca.cert.SubjectKeyId,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, ca.cert, &leafKey.PublicKey, ca.key)
	require.NoError(t, err)

	dir := ca.writeBaseDir(t, &x509.RevocationList{
		Number:     big.NewInt(3),
		ThisUpdate: time.Now(),
		NextUpdate: time.Now().Add(time.Hour),
		RevokedCertificateEntries: []x509.RevocationListEntry{
			{SerialNumber: big.NewInt(0x01), RevocationTime: time.Now()},
			{SerialNumber: big.NewInt(0x02), RevocationTime: time.Now()},
		},
	})

	certsDir := filepath.Join(dir, "certs")
	require.NoError(t, os.Mkdir(certsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(certsDir, "leaf.der"), leafDER, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(certsDir, "extra.serials"), []byte("04\n"), 0o644))

	backend := store.NewMemoryStore()
	ok, err := ImportCRLToOCSPDB(context.Background(), dir, backend, testOptions())
	require.NoError(t, err)
	require.True(t, ok)

	issuer, err := backend.FetchIssuerByS1C(context.Background(), mustS1C(t, ca.cert))
	require.NoError(t, err)

	rows := backend.Snapshot(issuer.ID)
	require.Len(t, rows, 4)

	bySN := make(map[string]store.Cert, len(rows))
	for _, r := range rows {
		bySN[r.SN] = r
	}

	require.True(t, bySN["1"].Rev)
	require.True(t, bySN["2"].Rev)
	require.False(t, bySN["3"].Rev)
	require.NotNil(t, bySN["3"].Hash)
	require.False(t, bySN["04"].Rev)
	require.Nil(t, bySN["04"].Hash)
	require.Equal(t, store.SentinelNotBefore, bySN["04"].NBefore)
	require.Equal(t, store.SentinelNotAfter, bySN["04"].NAfter)
}

func mustS1C(t *testing.T, cert *x509.Certificate) string {
	t.Helper()
	s1c, err := hashalgo.SHA1.Base64Hash(cert.Raw)
	require.NoError(t, err)
	return s1c
}
