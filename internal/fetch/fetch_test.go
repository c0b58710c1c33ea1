package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_FetchCRL_ReturnsBody(t *testing.T) {
	want := []byte("fake-der-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(want)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	got, err := c.FetchCRL(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func Test_FetchCRL_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(5 * time.Second)
	_, err := c.FetchCRL(context.Background(), srv.URL)
	require.Error(t, err)
}
