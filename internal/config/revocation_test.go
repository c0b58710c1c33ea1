package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeProps(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "REVOCATION")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func Test_LoadRevocation_RequiredFieldOnly(t *testing.T) {
	path := writeProps(t, t.TempDir(), "# comment\nca.revocation.time=20240615120000\n")

	rev, err := LoadRevocation(path)
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC), rev.RevocationTime)
	require.Nil(t, rev.InvalidityTime)
}

func Test_LoadRevocation_BothFields(t *testing.T) {
	path := writeProps(t, t.TempDir(), "ca.revocation.time=20240615120000\nca.invalidity.time=20240601000000\n")

	rev, err := LoadRevocation(path)
	require.NoError(t, err)
	require.NotNil(t, rev.InvalidityTime)
	require.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *rev.InvalidityTime)
}

func Test_LoadRevocation_MissingRequiredKey(t *testing.T) {
	path := writeProps(t, t.TempDir(), "ca.invalidity.time=20240601000000\n")
	_, err := LoadRevocation(path)
	require.Error(t, err)
}

func Test_LoadRevocation_MissingFile(t *testing.T) {
	_, err := LoadRevocation(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
	require.True(t, os.IsNotExist(err))
}

func Test_LoadRevocation_MalformedLine(t *testing.T) {
	path := writeProps(t, t.TempDir(), "not-a-valid-line\n")
	_, err := LoadRevocation(path)
	require.Error(t, err)
}

func Test_LoadRevocation_BadDateFormat(t *testing.T) {
	path := writeProps(t, t.TempDir(), "ca.revocation.time=2024-06-15\n")
	_, err := LoadRevocation(path)
	require.Error(t, err)
}
