package ingest

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// loadCertFile reads a DER or PEM certificate file, accepting either form
// the way operators actually drop files into the import directory. ctx is
// checked before the read so a canceled import never blocks on a slow or
// stalled filesystem.
func loadCertFile(ctx context.Context, path string) (*x509.Certificate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseCertBytes(raw)
}

func parseCertBytes(raw []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(raw); block != nil {
		return x509.ParseCertificate(block.Bytes)
	}
	return x509.ParseCertificate(raw)
}

// chooseSigner implements §4.F step 1: the CA cert is the CRL signer unless
// the CRL's issuer DN differs from the CA subject, in which case issuer.crt
// is required and must itself carry that issuer DN as its subject.
func chooseSigner(ctx context.Context, caCert *x509.Certificate, crlIssuerDN string, issuerCertPath string) (*x509.Certificate, error) {
	if caCert.Subject.String() == crlIssuerDN {
		return caCert, nil
	}

	if _, err := os.Stat(issuerCertPath); err != nil {
		return nil, newImportError(InputMissing, fmt.Sprintf("CRL issuer %q differs from CA subject %q and issuer.crt is required", crlIssuerDN, caCert.Subject.String()), err)
	}

	issuerCert, err := loadCertFile(ctx, issuerCertPath)
	if err != nil {
		return nil, newImportError(InputMalformed, "parsing issuer.crt", err)
	}
	if issuerCert.Subject.String() != crlIssuerDN {
		return nil, newImportError(InputMalformed, fmt.Sprintf("issuer.crt subject %q does not match CRL issuer %q", issuerCert.Subject.String(), crlIssuerDN), nil)
	}
	return issuerCert, nil
}
