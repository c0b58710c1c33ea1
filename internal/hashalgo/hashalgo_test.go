package hashalgo

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AllVariantsHaveConsistentLength(t *testing.T) {
	for _, algo := range All() {
		sum, err := algo.Sum([]byte("hello world"))
		require.NoError(t, err, algo.Name())
		require.Len(t, sum, algo.Length(), algo.Name())
	}
}

func Test_Base64HashMatchesStandardEncoding(t *testing.T) {
	sum, err := SHA256.Sum([]byte("hello world"))
	require.NoError(t, err)

	b64, err := SHA256.Base64Hash([]byte("hello world"))
	require.NoError(t, err)

	require.Equal(t, sum, mustDecode(t, b64))
}

func Test_ByName(t *testing.T) {
	algo, err := ByName("SHA3-256")
	require.NoError(t, err)
	require.Equal(t, SHA3_256, algo)

	_, err = ByName("SHA-999")
	require.Error(t, err)
}

func Test_OIDsAreDistinct(t *testing.T) {
	seen := map[string]HashAlgo{}
	for _, algo := range All() {
		oid := algo.OID().String()
		if other, ok := seen[oid]; ok {
			t.Fatalf("duplicate OID %s for %v and %v", oid, algo, other)
		}
		seen[oid] = algo
	}
}

func mustDecode(t *testing.T, s string) []byte {
	t.Helper()
	b, err := base64.StdEncoding.DecodeString(s)
	require.NoError(t, err)
	return b
}
