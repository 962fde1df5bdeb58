package safe

import (
	"os"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestSafe(t *testing.T) *Safe {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db, Options{Root: t.TempDir(), CacheSize: 8})
	require.NoError(t, err)
	return s
}

func TestSafe(t *testing.T) {
	s := setupTestSafe(t)

	t.Run("Store and Get", func(t *testing.T) {
		content := []byte("contract A {}")
		hash, err := s.Store("A.sol", content)
		require.NoError(t, err)
		assert.Equal(t, HashContent(content), hash)

		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("Dedup bumps ref count", func(t *testing.T) {
		content := []byte("library L {}")
		h1, err := s.Store("L.sol", content)
		require.NoError(t, err)
		h2, err := s.Store("Other.sol", content)
		require.NoError(t, err)
		assert.Equal(t, h1, h2)

		meta, err := s.getMeta(h1)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), meta.RefCount)
		assert.Equal(t, "L.sol", meta.Name)
	})

	t.Run("Large content is compressed", func(t *testing.T) {
		content := []byte(strings.Repeat("function f() public {}\n", 500))
		hash, err := s.Store("Big.sol", content)
		require.NoError(t, err)

		meta, err := s.getMeta(hash)
		require.NoError(t, err)
		assert.True(t, meta.Compressed)

		onDisk, err := os.ReadFile(s.contentPath(hash))
		require.NoError(t, err)
		assert.Less(t, len(onDisk), len(content))

		s.cache.Remove(hash)
		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("Skipped extension is stored raw", func(t *testing.T) {
		content := []byte(strings.Repeat("x", 4096))
		hash, err := s.Store("bundle.zip", content)
		require.NoError(t, err)

		meta, err := s.getMeta(hash)
		require.NoError(t, err)
		assert.False(t, meta.Compressed)
	})

	t.Run("Delete honours ref count", func(t *testing.T) {
		content := []byte("contract D {}")
		hash, err := s.Store("D.sol", content)
		require.NoError(t, err)
		_, err = s.Store("D.sol", content)
		require.NoError(t, err)

		require.NoError(t, s.Delete(hash))
		meta, err := s.getMeta(hash)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), meta.RefCount)

		require.NoError(t, s.Delete(hash))
		_, err = s.getMeta(hash)
		assert.ErrorIs(t, err, ErrContentNotFound)

		_, err = s.Get(hash)
		assert.ErrorIs(t, err, ErrContentNotFound)
	})

	t.Run("Invalid hash", func(t *testing.T) {
		_, err := s.Get("nothex")
		assert.ErrorIs(t, err, ErrInvalidHash)
		assert.ErrorIs(t, s.Delete("nothex"), ErrInvalidHash)
	})

	t.Run("Empty content", func(t *testing.T) {
		hash, err := s.Store("Empty.sol", nil)
		require.NoError(t, err)

		got, err := s.Get(hash)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
