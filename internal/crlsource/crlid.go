package crlsource

import (
	"encoding/asn1"
	"math/big"
	"strings"
	"time"
)

type crlIDSeq struct {
	URL        string    `asn1:"optional,tag:0,ia5"`
	CRLNumber  *big.Int  `asn1:"tag:1"`
	ThisUpdate time.Time `asn1:"tag:2,generalized"`
}

// BuildCRLID constructs the crlID DER value from §4.F step 3:
// SEQUENCE { [0] IA5String url?, [1] INTEGER crlNumber, [2] GeneralizedTime
// thisUpdate }. url is omitted from the encoding when blank.
func BuildCRLID(url string, crlNumber *big.Int, thisUpdate time.Time) ([]byte, error) {
	seq := crlIDSeq{
		CRLNumber:  crlNumber,
		ThisUpdate: thisUpdate.UTC().Truncate(time.Second),
	}
	if strings.TrimSpace(url) != "" {
		seq.URL = url
	}
	return asn1.Marshal(seq)
}
