package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports/tests"
)

func TestFileStore_Contract(t *testing.T) {
	tests.RunStateStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_ScopedIDs(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	id := "pizza:+49 151/000"
	state := domain.NewConversationState(id, "pizza", "+49151000", time.Now().UTC())
	require.NoError(t, store.Save(ctx, id, state))

	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, loaded.ConversationID)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files are left behind")
	assert.NotContains(t, entries[0].Name(), "/")
	assert.NotContains(t, entries[0].Name(), ":")

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestFileStore_Overwrite(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	state := domain.NewConversationState("c-1", "bot", "r", time.Now().UTC())
	require.NoError(t, store.Save(ctx, "c-1", state))
	state.CurrentNodeID = "ask"
	require.NoError(t, store.Save(ctx, "c-1", state))

	loaded, err := store.Load(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "ask", loaded.CurrentNodeID)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "nope"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFileStore_EmptyID(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()
	assert.Error(t, store.Save(ctx, "", &domain.ConversationState{}))
	_, err := store.Load(ctx, "")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, ""))
}
