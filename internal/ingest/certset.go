package ingest

import (
	"bufio"
	"bytes"
	"context"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/dwabisch/ocspingest/internal/hashalgo"
	"github.com/dwabisch/ocspingest/internal/store"
)

// crlCertsetOID is id-xipki-ext-crlCertset, the private CRL extension that
// embeds full certificate material inline so an import run need not also
// read a companion certs/ directory.
var crlCertsetOID = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 45522, 1, 1}

type crlCertsetEntry struct {
	SerialNumber *big.Int
	Certificate  asn1.RawValue `asn1:"optional,explicit,tag:0"`
	ProfileName  string        `asn1:"optional,explicit,tag:1,utf8"`
}

// findCertsetExtension returns the raw value of the crlCertset extension, if
// the CRL carries one.
func findCertsetExtension(extensions []pkix.Extension) ([]byte, bool) {
	for _, ext := range extensions {
		if ext.Id.Equal(crlCertsetOID) {
			return ext.Value, true
		}
	}
	return nil, false
}

// ingestCertset parses and upserts the crlCertset extension's entries per
// §4.F step 7. Each entry's embedded certificate is sanity-checked against
// the outer serial and the CA subject; a mismatch is logged and skipped,
// not fatal to the run.
func ingestCertset(ctx context.Context, logger hclog.Logger, backend store.Backend, iid int64, caSubject string, skid []byte, algo hashalgo.HashAlgo, now int64, raw []byte) error {
	var entries []crlCertsetEntry
	if _, err := asn1.Unmarshal(raw, &entries); err != nil {
		return newImportError(EncodingError, "decoding crlCertset extension", err)
	}

	for _, entry := range entries {
		if len(entry.Certificate.Bytes) == 0 && entry.Certificate.FullBytes == nil {
			continue
		}

		certDER := entry.Certificate.FullBytes
		cert, err := x509.ParseCertificate(certDER)
		if err != nil {
			logger.Warn("skipping crlCertset entry with unparseable certificate", "serial", entry.SerialNumber.Text(16), "error", err)
			continue
		}
		if cert.Issuer.String() != caSubject {
			logger.Warn("skipping crlCertset entry with mismatched issuer", "serial", entry.SerialNumber.Text(16))
			continue
		}
		if cert.SerialNumber.Cmp(entry.SerialNumber) != 0 {
			logger.Warn("skipping crlCertset entry with mismatched serial", "outer", entry.SerialNumber.Text(16), "cert", cert.SerialNumber.Text(16))
			continue
		}
		if !admitsCert(cert, skid) {
			logger.Warn("skipping crlCertset entry failing AKI/SKI admission check", "serial", entry.SerialNumber.Text(16))
			continue
		}

		if err := upsertFullCert(ctx, backend, iid, cert, algo, now); err != nil {
			return err
		}
	}
	return nil
}

// admitsCert implements §4.F's cross-CA contamination guard: a cert whose
// AKI is present and does not equal the CA's SKI is rejected.
func admitsCert(cert *x509.Certificate, caSKID []byte) bool {
	if len(cert.AuthorityKeyId) == 0 {
		return true
	}
	return bytes.Equal(cert.AuthorityKeyId, caSKID)
}

func upsertFullCert(ctx context.Context, backend store.Backend, iid int64, cert *x509.Certificate, algo hashalgo.HashAlgo, now int64) error {
	sn := serialHex(cert.SerialNumber)
	digest, err := algo.Base64Hash(cert.Raw)
	if err != nil {
		return newImportError(EncodingError, "hashing certificate", err)
	}

	id, err := backend.FindCertID(ctx, iid, sn)
	if err == store.ErrNotFound {
		_, err := backend.InsertCertFull(ctx, &store.Cert{
			IID: iid, SN: sn, LUpdate: now,
			NBefore: cert.NotBefore.Unix(), NAfter: cert.NotAfter.Unix(), Hash: &digest,
		})
		return wrapStoreErr(err)
	}
	if err != nil {
		return newImportError(StoreError, "looking up cert id", err)
	}
	return wrapStoreErr(backend.UpdateCertFull(ctx, &store.Cert{
		ID: id, LUpdate: now, NBefore: cert.NotBefore.Unix(), NAfter: cert.NotAfter.Unix(), Hash: &digest,
	}))
}

// ingestCertsDir implements §4.F step 7's fallback path: every .der/.crt/.pem
// file as a full cert, then every .serials file as serial-only rows. ctx is
// checked once per directory entry so a canceled import stops between files
// rather than running the whole directory to completion.
func ingestCertsDir(ctx context.Context, logger hclog.Logger, backend store.Backend, iid int64, skid []byte, algo hashalgo.HashAlgo, now int64, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return newImportError(InputMalformed, "reading certs directory", err)
	}

	var serialsFiles []string
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		path := filepath.Join(dir, name)

		switch ext {
		case ".der", ".crt", ".pem":
			cert, err := loadCertFile(ctx, path)
			if err != nil {
				logger.Warn("skipping unparseable certificate file", "file", name, "error", err)
				continue
			}
			if !admitsCert(cert, skid) {
				logger.Warn("skipping certificate file failing AKI/SKI admission check", "file", name)
				continue
			}
			if err := upsertFullCert(ctx, backend, iid, cert, algo, now); err != nil {
				return err
			}
		case ".serials":
			serialsFiles = append(serialsFiles, path)
		}
	}
	for _, path := range serialsFiles {
		if err := ingestSerialsFile(ctx, logger, backend, iid, now, path); err != nil {
			return err
		}
	}
	return nil
}

func ingestSerialsFile(ctx context.Context, logger hclog.Logger, backend store.Backend, iid int64, now int64, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return newImportError(InputMalformed, "opening serials file", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		sn := strings.ToLower(strings.TrimPrefix(line, "0x"))

		id, err := backend.FindCertID(ctx, iid, sn)
		if err == store.ErrNotFound {
			if _, err := backend.InsertCertFull(ctx, &store.Cert{
				IID: iid, SN: sn, LUpdate: now,
				NBefore: store.SentinelNotBefore, NAfter: store.SentinelNotAfter, Hash: nil,
			}); err != nil {
				return wrapStoreErr(err)
			}
			continue
		}
		if err != nil {
			return newImportError(StoreError, "looking up cert id", err)
		}
		if err := backend.UpdateCertFull(ctx, &store.Cert{
			ID: id, LUpdate: now, NBefore: store.SentinelNotBefore, NAfter: store.SentinelNotAfter, Hash: nil,
		}); err != nil {
			return wrapStoreErr(err)
		}
	}
	return scanner.Err()
}

func serialHex(sn *big.Int) string {
	return fmt.Sprintf("%x", sn)
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return newImportError(StoreError, "store operation failed", err)
}
