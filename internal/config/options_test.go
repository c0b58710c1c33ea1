package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_ApplyOverrides_Defaults(t *testing.T) {
	out, err := ApplyOverrides(DefaultImportOptions(), nil)
	require.NoError(t, err)
	require.Equal(t, DefaultImportOptions(), out)
}

func Test_ApplyOverrides_ParsesLooselyTypedValues(t *testing.T) {
	out, err := ApplyOverrides(DefaultImportOptions(), map[string]interface{}{
		"sweep_stale":              "false",
		"signature_timeout":        "45",
		"fetch_distribution_point": true,
	})
	require.NoError(t, err)
	require.False(t, out.SweepStale)
	require.Equal(t, 45*time.Second, out.SignatureTimeout)
	require.True(t, out.FetchDistributionPoint)
}

func Test_ApplyOverrides_InvalidBoolIsError(t *testing.T) {
	_, err := ApplyOverrides(DefaultImportOptions(), map[string]interface{}{
		"sweep_stale": "not-a-bool",
	})
	require.Error(t, err)
}
