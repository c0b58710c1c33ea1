package template

import (
	"encoding/asn1"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dwabisch/ocspingest/internal/hashalgo"
)

func Test_GetCertHashExtension_RoundTripsThroughASN1(t *testing.T) {
	c, err := Build()
	require.NoError(t, err)

	hash := make([]byte, hashalgo.SHA256.Length())
	for i := range hash {
		hash[i] = byte(i)
	}

	encoded, err := c.GetCertHashExtension(hashalgo.SHA256, hash)
	require.NoError(t, err)

	var ext pkixExtension
	rest, err := asn1.Unmarshal(encoded, &ext)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.True(t, ext.Id.Equal(CertHashOID))
	require.False(t, ext.Critical)

	var ch certHash
	_, err = asn1.Unmarshal(ext.Value, &ch)
	require.NoError(t, err)
	require.True(t, ch.HashAlgorithm.Algorithm.Equal(hashalgo.SHA256.OID()))
	require.Equal(t, hash, ch.CertificateHash)
}

func Test_GetCertHashExtension_WrongLengthIsInvalidArgument(t *testing.T) {
	c, err := Build()
	require.NoError(t, err)

	_, err = c.GetCertHashExtension(hashalgo.SHA256, make([]byte, 4))
	require.Error(t, err)
}

func Test_GetInvalidityDateExtension(t *testing.T) {
	c, err := Build()
	require.NoError(t, err)

	when := time.Date(2024, 3, 2, 1, 0, 0, 123456789, time.UTC)
	encoded, err := c.GetInvalidityDateExtension(when)
	require.NoError(t, err)

	var ext pkixExtension
	_, err = asn1.Unmarshal(encoded, &ext)
	require.NoError(t, err)
	require.True(t, ext.Id.Equal(InvalidityDateOID))

	var gt time.Time
	_, err = asn1.UnmarshalWithParams(ext.Value, &gt, "generalized")
	require.NoError(t, err)
	require.True(t, gt.Equal(when.Truncate(time.Second)))
}

func Test_GetEncodeRevokedInfo_NoReason(t *testing.T) {
	when := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	out, err := GetEncodeRevokedInfo(nil, when)
	require.NoError(t, err)
	require.Len(t, out, 19)
	require.Equal(t, byte(0xA1), out[0])
	require.Equal(t, byte(0x11), out[1])
}

func Test_GetEncodeRevokedInfo_WithReason(t *testing.T) {
	when := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	reason := byte(1) // keyCompromise
	out, err := GetEncodeRevokedInfo(&reason, when)
	require.NoError(t, err)
	require.Len(t, out, 24)

	expected := []byte{
		0xA1, 0x16,
		0x18, 0x0F, '2', '0', '2', '4', '0', '6', '1', '5', '1', '2', '0', '0', '0', '0', 'Z',
		0xA0, 0x03, 0x0A, 0x01, 0x01,
	}
	require.Equal(t, expected, out)
	require.Equal(t, reason, out[23])
}
