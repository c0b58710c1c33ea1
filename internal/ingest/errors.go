package ingest

import "fmt"

// ErrorKind is the closed taxonomy of §7: any import failure is classified
// as exactly one of these, never a bare error string.
type ErrorKind int

const (
	// InputMissing marks a required file absent from the import directory.
	InputMissing ErrorKind = iota
	// InputMalformed marks a CA cert, CRL, or embedded cert that failed to parse.
	InputMalformed
	// CrlSignatureInvalid marks a CRL whose signature did not verify.
	CrlSignatureInvalid
	// CrlMissingNumber marks a CRL with no crlNumber extension.
	CrlMissingNumber
	// CrlNotNewer marks a CRL number not strictly greater than the stored one.
	CrlNotNewer
	// NeedFullCrlFirst marks a delta CRL applied before any full CRL exists
	// for the issuer.
	NeedFullCrlFirst
	// DeltaBaseMismatch marks a delta CRL whose base does not match the
	// stored base/full CRL number.
	DeltaBaseMismatch
	// CrlEntryIssuerMismatch marks a revoked entry's indirect-CRL issuer
	// that does not equal the CA subject.
	CrlEntryIssuerMismatch
	// StoreError wraps a data-source-translated error.
	StoreError
	// EncodingError marks a DER encode/decode failure on a structure the
	// engine itself must write.
	EncodingError
)

func (k ErrorKind) String() string {
	switch k {
	case InputMissing:
		return "InputMissing"
	case InputMalformed:
		return "InputMalformed"
	case CrlSignatureInvalid:
		return "CrlSignatureInvalid"
	case CrlMissingNumber:
		return "CrlMissingNumber"
	case CrlNotNewer:
		return "CrlNotNewer"
	case NeedFullCrlFirst:
		return "NeedFullCrlFirst"
	case DeltaBaseMismatch:
		return "DeltaBaseMismatch"
	case CrlEntryIssuerMismatch:
		return "CrlEntryIssuerMismatch"
	case StoreError:
		return "StoreError"
	case EncodingError:
		return "EncodingError"
	default:
		return "Unknown"
	}
}

// ImportError is the typed error an import run aborts with. Callers that
// need the taxonomy of §7 should use errors.As to recover one.
type ImportError struct {
	Kind ErrorKind
	Msg  string
	Err  error // underlying cause, if any
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("ingest: %s: %s", e.Kind, e.Msg)
}

func (e *ImportError) Unwrap() error { return e.Err }

func newImportError(kind ErrorKind, msg string, err error) *ImportError {
	return &ImportError{Kind: kind, Msg: msg, Err: err}
}
