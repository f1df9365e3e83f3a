package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twin/internal/session/filestore"
	"twin/internal/session/memstore"
)

func TestNewStoreSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := NewStore(ctx, Config{Backend: "memory"}, Clients{})
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, store)

	store, err = NewStore(ctx, Config{Dir: t.TempDir()}, Clients{})
	require.NoError(t, err)
	assert.IsType(t, &filestore.Store{}, store)
}

func TestNewStoreRequiresClients(t *testing.T) {
	ctx := context.Background()

	_, err := NewStore(ctx, Config{Backend: S3, S3Bucket: "b"}, Clients{})
	require.Error(t, err)

	_, err = NewStore(ctx, Config{Backend: Redis}, Clients{})
	require.Error(t, err)

	_, err = NewStore(ctx, Config{Backend: Postgres}, Clients{})
	require.Error(t, err)
}

func TestNewStoreUnknownBackend(t *testing.T) {
	_, err := NewStore(context.Background(), Config{Backend: "dynamo"}, Clients{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dynamo")
}
