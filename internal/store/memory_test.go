package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_MemoryStore_IssuerUpsertIsIdempotentByS1C(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	id1, err := m.UpsertIssuer(ctx, &Issuer{S1C: "abc", Subject: "CN=Root"})
	require.NoError(t, err)

	id2, err := m.UpsertIssuer(ctx, &Issuer{S1C: "abc", Subject: "CN=Root", CRLInfo: CRLInfo{CRLNumber: 7}})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	got, err := m.FetchIssuerByS1C(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, int64(7), got.CRLInfo.CRLNumber)
}

func Test_MemoryStore_FetchIssuerByS1C_NotFound(t *testing.T) {
	m := NewMemoryStore()
	_, err := m.FetchIssuerByS1C(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func Test_MemoryStore_InsertAndFindCert(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	hash := "deadbeef"
	id, err := m.InsertCertFull(ctx, &Cert{
		IID: 1, SN: "0a", LUpdate: 100, NBefore: 10, NAfter: 20, Hash: &hash,
	})
	require.NoError(t, err)

	found, err := m.FindCertID(ctx, 1, "0a")
	require.NoError(t, err)
	require.Equal(t, id, found)
}

func Test_MemoryStore_DeleteCert(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.InsertCertRevokedOnly(ctx, &Cert{IID: 1, SN: "0b", Rev: true, LUpdate: 1})
	require.NoError(t, err)

	require.NoError(t, m.DeleteCert(ctx, 1, "0b"))
	_, err = m.FindCertID(ctx, 1, "0b")
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, m.DeleteCert(ctx, 1, "0b"), ErrNotFound)
}

func Test_MemoryStore_SweepStaleRemovesOnlyOlderRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.InsertCertRevokedOnly(ctx, &Cert{IID: 1, SN: "old", LUpdate: 100})
	require.NoError(t, err)

	_, err = m.InsertCertRevokedOnly(ctx, &Cert{IID: 1, SN: "new", LUpdate: 200})
	require.NoError(t, err)

	n, err := m.SweepStale(ctx, 1, 200)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = m.FindCertID(ctx, 1, "old")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.FindCertID(ctx, 1, "new")
	require.NoError(t, err)
}

func Test_MemoryStore_UpdateCertRevocationRequiresExistingRow(t *testing.T) {
	err := NewMemoryStore().UpdateCertRevocation(context.Background(), &Cert{ID: 999})
	require.ErrorIs(t, err, ErrNotFound)
}
