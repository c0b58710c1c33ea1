package config

import (
	"time"

	"github.com/hashicorp/go-secure-stdlib/parseutil"
)

// ImportOptions are the scalar engine options that can come from the
// environment or a small options map, layered on top of the REVOCATION
// file's CA-specific fields. Each field accepts any of the loosely-typed
// inputs parseutil normalizes (string, number, bool) so callers can wire
// them straight from os.Getenv without a separate parsing pass.
type ImportOptions struct {
	// SweepStale controls whether a full-CRL import deletes rows not
	// touched by the run (§4.F step 8). Defaults to true via
	// DefaultImportOptions; a bare zero-value ImportOptions{} built by hand
	// instead of through DefaultImportOptions leaves this false and
	// silently disables §3's "no CERT row has lupdate < importStart"
	// invariant for full CRLs.
	SweepStale bool

	// SignatureTimeout is parsed and carried with the options, but
	// ingest.ImportCRLToOCSPDB does not read it: CRL signature verification
	// runs without a time bound.
	SignatureTimeout time.Duration

	// FetchDistributionPoint is parsed and carried with the options, but
	// ingest.ImportCRLToOCSPDB does not read it and never calls
	// internal/fetch; the CRL file must already be in place.
	FetchDistributionPoint bool
}

// DefaultImportOptions returns the zero-config defaults.
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		SweepStale:             true,
		SignatureTimeout:       30 * time.Second,
		FetchDistributionPoint: false,
	}
}

// ApplyOverrides layers loosely-typed overrides (as read from environment
// variables or a properties map) onto the defaults, using parseutil so
// "1"/"true"/"yes" and "30s"/"30" all parse the way an operator expects.
func ApplyOverrides(base ImportOptions, overrides map[string]interface{}) (ImportOptions, error) {
	out := base

	if v, ok := overrides["sweep_stale"]; ok {
		b, err := parseutil.ParseBool(v)
		if err != nil {
			return out, err
		}
		out.SweepStale = b
	}

	if v, ok := overrides["signature_timeout"]; ok {
		d, err := parseutil.ParseDurationSecond(v)
		if err != nil {
			return out, err
		}
		out.SignatureTimeout = d
	}

	if v, ok := overrides["fetch_distribution_point"]; ok {
		b, err := parseutil.ParseBool(v)
		if err != nil {
			return out, err
		}
		out.FetchDistributionPoint = b
	}

	return out, nil
}
