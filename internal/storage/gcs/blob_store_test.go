package gcs

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesConfig(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{Bucket: "  "})
	require.Error(t, err)
}

func TestObjectNameAppliesPrefix(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "nga", Prefix: "/archive/"})
	require.NoError(t, err)
	assert.Equal(t, "archive/indexes/run/abc.json", store.ObjectName("indexes/run/abc.json"))

	bare, err := New(&storage.Client{}, Config{Bucket: "nga"})
	require.NoError(t, err)
	assert.Equal(t, "indexes/run/abc.json", bare.ObjectName("indexes/run/abc.json"))
	assert.NoError(t, bare.Close(), "borrowed clients are not closed")
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "nga"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), "", "application/json", strings.NewReader("{}"))
	require.Error(t, err)
}
