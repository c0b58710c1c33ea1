// Package ingest implements the CRL Import Engine: it orchestrates the CRL
// stream parser, the store schema, and an injected data-source collaborator
// to reconcile one CRL against the ISSUER/CERT tables.
package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/go-uuid"

	"github.com/dwabisch/ocspingest/internal/config"
	"github.com/dwabisch/ocspingest/internal/crlsource"
	"github.com/dwabisch/ocspingest/internal/hashalgo"
	"github.com/dwabisch/ocspingest/internal/store"
)

// Options configures one import run. ImportConfig should normally come from
// config.DefaultImportOptions (optionally layered with config.ApplyOverrides):
// a bare Options{} leaves ImportConfig.SweepStale false, which silently
// disables the full-CRL sweep invariant — see that field's doc comment.
type Options struct {
	Logger       hclog.Logger
	HashAlgo     hashalgo.HashAlgo
	ImportConfig config.ImportOptions
	Now          func() time.Time // overridable for deterministic tests; defaults to time.Now
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// ImportCRLToOCSPDB implements §4.F's importCrlToOcspDb entry point. baseDir
// must contain ca.crt and ca.crl at minimum; it also reads issuer.crt,
// crl.url, REVOCATION and the certs/ directory when present. It returns
// true on a successful reconciliation,
// false with a non-nil *ImportError on any of the conditions in §7.
func ImportCRLToOCSPDB(ctx context.Context, baseDir string, backend store.Backend, opts Options) (bool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	runID, err := uuid.GenerateUUID()
	if err != nil {
		runID = "unknown"
	}
	logger = logger.With("import_run", runID, "basedir", baseDir)

	importStart := opts.now().Unix()

	// Step 1: load CA cert, choose signer, verify CRL signature.
	caCert, err := loadCertFile(ctx, filepath.Join(baseDir, "ca.crt"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, newImportError(InputMissing, "ca.crt is required", err)
		}
		return false, newImportError(InputMalformed, "parsing ca.crt", err)
	}

	crlPath := filepath.Join(baseDir, "ca.crl")
	crl, err := crlsource.Open(ctx, crlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, newImportError(InputMissing, "ca.crl is required", err)
		}
		if err == crlsource.ErrMissingCRLNumber {
			return false, newImportError(CrlMissingNumber, "CRL carries no crlNumber extension", err)
		}
		return false, newImportError(InputMalformed, "parsing ca.crl", err)
	}
	defer crl.Close()

	signer, ierr := chooseSigner(ctx, caCert, crl.Issuer.String(), filepath.Join(baseDir, "issuer.crt"))
	if ierr != nil {
		return false, ierr
	}
	if err := crl.VerifySignature(ctx, signer); err != nil {
		logger.Warn("CRL signature verification failed", "error", err)
		return false, newImportError(CrlSignatureInvalid, "CRL signature did not verify against the chosen signer", err)
	}

	// Step 2/3: crlNumber/delta already resolved by crlsource.Open; build crlID.
	url := readDistributionURL(filepath.Join(baseDir, "crl.url"))
	crlID, err := crlsource.BuildCRLID(url, crl.CRLNumber, crl.ThisUpdate)
	if err != nil {
		return false, newImportError(EncodingError, "building crlID", err)
	}

	// Step 5: upsert ISSUER, enforce monotonicity and delta-base linkage.
	// S1C is always the SHA-1 fingerprint per §3, independent of the
	// configurable CertHash digest algorithm used for the Cert.Hash column.
	s1c, err := hashalgo.SHA1.Base64Hash(caCert.Raw)
	if err != nil {
		return false, newImportError(EncodingError, "hashing CA certificate", err)
	}

	existing, fetchErr := backend.FetchIssuerByS1C(ctx, s1c)
	issuerIsNew := fetchErr == store.ErrNotFound
	if fetchErr != nil && !issuerIsNew {
		return false, newImportError(StoreError, "fetching issuer", fetchErr)
	}

	if issuerIsNew && crl.IsDelta {
		return false, newImportError(NeedFullCrlFirst, "delta CRL applied before any full CRL exists for this issuer", nil)
	}

	if !issuerIsNew {
		if crl.CRLNumber.Cmp(big.NewInt(existing.CRLInfo.CRLNumber)) <= 0 {
			return false, newImportError(CrlNotNewer, fmt.Sprintf("incoming crlNumber %s is not greater than stored %d", crl.CRLNumber, existing.CRLInfo.CRLNumber), nil)
		}
		if crl.IsDelta {
			expectedBase := existing.CRLInfo.CRLNumber
			if existing.CRLInfo.BaseCRLNumber != nil {
				expectedBase = *existing.CRLInfo.BaseCRLNumber
			}
			if crl.BaseCRLNumber.Cmp(big.NewInt(expectedBase)) != 0 {
				return false, newImportError(DeltaBaseMismatch, fmt.Sprintf("delta baseCrlNumber %s does not match stored base/full %d", crl.BaseCRLNumber, expectedBase), nil)
			}
		}
	}

	newCRLInfo := store.CRLInfo{
		CRLNumber:  crl.CRLNumber.Int64(),
		ThisUpdate: crl.ThisUpdate.Unix(),
		NextUpdate: crl.NextUpdate.Unix(),
		CRLID:      crlID,
	}
	if crl.IsDelta {
		base := crl.BaseCRLNumber.Int64()
		newCRLInfo.BaseCRLNumber = &base
	}

	var revInfo *store.RevInfo
	if rev, err := config.LoadRevocation(filepath.Join(baseDir, "REVOCATION")); err == nil {
		ri := &store.RevInfo{RevocationTime: rev.RevocationTime.Unix()}
		if rev.InvalidityTime != nil {
			v := rev.InvalidityTime.Unix()
			ri.InvalidityTime = &v
		}
		revInfo = ri
	} else if !os.IsNotExist(err) {
		return false, newImportError(InputMalformed, "parsing REVOCATION", err)
	}

	iid, err := backend.UpsertIssuer(ctx, &store.Issuer{
		Subject:   caCert.Subject.String(),
		NotBefore: caCert.NotBefore.Unix(),
		NotAfter:  caCert.NotAfter.Unix(),
		S1C:       s1c,
		Cert:      base64.StdEncoding.EncodeToString(caCert.Raw),
		RevInfo:   revInfo,
		CRLInfo:   newCRLInfo,
	})
	if err != nil {
		return false, newImportError(StoreError, "upserting issuer", err)
	}

	// Step 6: iterate revoked entries.
	caSubject := caCert.Subject.String()
	var warnings *multierror.Error

	it := crl.RevokedCertificates(ctx)
	defer it.Close()
	for it.Next() {
		entry := it.Entry()
		sn := serialHex(entry.SerialNumber)

		if entry.CertificateIssuer != nil && entry.CertificateIssuer.String() != caSubject {
			return false, newImportError(CrlEntryIssuerMismatch, fmt.Sprintf("entry %s carries certificateIssuer %q, expected %q", sn, entry.CertificateIssuer.String(), caSubject), nil)
		}

		if entry.Reason == crlsource.ReasonRemoveFromCRL {
			if crl.IsDelta {
				if err := backend.DeleteCert(ctx, iid, sn); err != nil && err != store.ErrNotFound {
					return false, newImportError(StoreError, "deleting removeFromCRL entry", err)
				}
			} else {
				logger.Warn("removeFromCRL entry in a full CRL, skipping delete", "serial", sn)
				warnings = multierror.Append(warnings, fmt.Errorf("removeFromCRL entry %s skipped in full CRL", sn))
			}
			continue
		}

		if err := upsertRevocation(ctx, backend, iid, sn, entry, importStart); err != nil {
			return false, err
		}
	}
	if err := it.Err(); err != nil {
		return false, newImportError(InputMalformed, "iterating revoked entries", err)
	}

	// Step 7: companion certificate material.
	if raw, ok := findCertsetExtension(crl.Extensions); ok {
		if err := ingestCertset(ctx, logger, backend, iid, caSubject, caCert.SubjectKeyId, opts.HashAlgo, importStart, raw); err != nil {
			return false, err
		}
	} else if err := ingestCertsDir(ctx, logger, backend, iid, caCert.SubjectKeyId, opts.HashAlgo, importStart, filepath.Join(baseDir, "certs")); err != nil {
		return false, err
	}

	// Step 8: full-CRL sweep only.
	if !crl.IsDelta && opts.ImportConfig.SweepStale {
		if _, err := backend.SweepStale(ctx, iid, importStart); err != nil {
			return false, newImportError(StoreError, "sweeping stale cert rows", err)
		}
	}

	if warnings.ErrorOrNil() != nil {
		logger.Warn("import completed with warnings", "count", len(warnings.Errors))
	}

	return true, nil
}

func upsertRevocation(ctx context.Context, backend store.Backend, iid int64, sn string, entry crlsource.RevokedEntry, now int64) error {
	reason := entry.Reason
	rr := &reason
	rt := entry.RevocationTime.Unix()
	var rit *int64
	if entry.InvalidityDate != nil {
		v := entry.InvalidityDate.Unix()
		rit = &v
	}

	id, err := backend.FindCertID(ctx, iid, sn)
	if err == store.ErrNotFound {
		_, err := backend.InsertCertRevokedOnly(ctx, &store.Cert{
			IID: iid, SN: sn, Rev: true, RR: rr, RT: &rt, RIT: rit, LUpdate: now,
		})
		return wrapStoreErr(err)
	}
	if err != nil {
		return newImportError(StoreError, "looking up cert id", err)
	}
	return wrapStoreErr(backend.UpdateCertRevocation(ctx, &store.Cert{
		ID: id, Rev: true, RR: rr, RT: &rt, RIT: rit, LUpdate: now,
	}))
}

func readDistributionURL(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
