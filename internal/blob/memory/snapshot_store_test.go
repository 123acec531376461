package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectReturnsURIAndStoresCopy(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("<html>listing</html>")
	uri, err := store.PutObject(context.Background(), "royal_orders/page-0001.html", "text/html; charset=utf-8", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://royal_orders/page-0001.html", uri)

	// Mutating the caller's slice must not reach the store.
	payload[0] = 'X'
	got, ok := store.Object("royal_orders/page-0001.html")
	require.True(t, ok)
	require.Equal(t, "<html>listing</html>", string(got))
	require.Equal(t, 1, store.Len())
}

func TestObjectMissingPath(t *testing.T) {
	t.Parallel()

	store := New()
	_, ok := store.Object("nope")
	require.False(t, ok)
}
