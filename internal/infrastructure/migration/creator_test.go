package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	dir := t.TempDir()

	first, err := Create(dir, "Add caisse indexes")
	require.NoError(t, err)
	assert.Equal(t, uint(1), first.Version)
	assert.Equal(t, "add_caisse_indexes", first.Name)
	assert.Equal(t, filepath.Join(dir, "000001_add_caisse_indexes.up.sql"), first.UpPath)
	assert.FileExists(t, first.DownPath)

	second, err := Create(dir, "payment-request  documents!")
	require.NoError(t, err)
	assert.Equal(t, uint(2), second.Version)
	assert.Equal(t, "payment_request_documents", second.Name)

	_, err = Create(dir, "!!!")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		migs, err := List(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, migs)
	})

	t.Run("orders by version", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"000010_outbox.up.sql", "000010_outbox.down.sql",
			"000002_orders.up.sql", "000002_orders.down.sql",
			"README.md", "embed.go",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		migs, err := List(dir)
		require.NoError(t, err)
		require.Len(t, migs, 2)
		assert.Equal(t, uint(2), migs[0].Version)
		assert.Equal(t, "outbox", migs[1].Name)
	})

	t.Run("half a pair", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "000001_orders.up.sql"), nil, 0o644))
		_, err := List(dir)
		assert.ErrorContains(t, err, "missing its up or down file")
	})

	t.Run("duplicate version", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{"000001_a.up.sql", "000001_b.down.sql"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
		}
		_, err := List(dir)
		assert.ErrorContains(t, err, "version 1 used by")
	})
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	migs, err := List(filepath.Join("..", "..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, migs)
	for i, mig := range migs {
		assert.Equal(t, uint(i+1), mig.Version, "versions are contiguous")
	}
}
