package manifest

import (
	stderrors "errors"
	"testing"
	"time"

	"remapper/internal/bundle"
	"remapper/internal/errors"
	"remapper/internal/remap"
	"remapper/internal/safe"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunStore(t *testing.T) {
	store := NewStore(setupTestDB(t))

	t.Run("Create assigns id", func(t *testing.T) {
		r := &Run{Main: "/p/Main.sol", TempDirectory: "out"}
		require.NoError(t, store.Create(r))
		assert.NotEmpty(t, r.ID)
		assert.False(t, r.CreatedAt.IsZero())

		err := store.Create(r)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})

	t.Run("Get", func(t *testing.T) {
		r := &Run{ID: uuid.New().String(), Main: "/p/B.sol"}
		require.NoError(t, store.Create(r))

		got, err := store.Get(r.ID)
		require.NoError(t, err)
		assert.Equal(t, "/p/B.sol", got.Main)

		_, err = store.Get("does-not-exist")
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("List newest first", func(t *testing.T) {
		listStore := NewStore(setupTestDB(t))
		base := time.Now()
		for i, id := range []string{"a", "b", "c"} {
			require.NoError(t, listStore.Create(&Run{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
		}

		runs, err := listStore.List()
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "c", runs[0].ID)
		assert.Equal(t, "a", runs[2].ID)
	})

	t.Run("Delete", func(t *testing.T) {
		r := &Run{}
		require.NoError(t, store.Create(r))
		require.NoError(t, store.Delete(r.ID))

		_, err := store.Get(r.ID)
		assert.Error(t, err)
		assert.Error(t, store.Delete(r.ID))
	})
}

func TestRecorder(t *testing.T) {
	db := setupTestDB(t)
	s, err := safe.New(db, safe.Options{Root: t.TempDir()})
	require.NoError(t, err)
	recorder := NewRecorder(NewStore(db), s, nil)

	r, err := remap.NewRemapper(remap.Options{TempDirectory: "out", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	b := bundle.New("/p/b/Main.sol")
	b.Add("/p/a/Token.sol", "contract Token { uint a; }")
	b.Add("/p/b/Token.sol", "contract Token { uint b; }")
	b.Add("/p/b/Main.sol", `import "./Token.sol";`)

	result, err := r.Remap(b)
	require.NoError(t, err)

	run, err := recorder.Record(b, result)
	require.NoError(t, err)
	require.Len(t, run.Files, 3)
	assert.Equal(t, 1, run.RenamedCount())
	assert.True(t, run.Files[2].IsMain)

	stored, err := recorder.box.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "Token_1", stored.Files[1].Name)

	original, output, err := recorder.Contents(stored.Files[1])
	require.NoError(t, err)
	assert.Equal(t, "contract Token { uint b; }", string(original))
	assert.Equal(t, "contract Token { uint b; }", string(output))

	require.NoError(t, recorder.Delete(run.ID))
	_, err = recorder.box.Get(run.ID)
	assert.Error(t, err)

	_, err = s.Get(stored.Files[0].OriginalHash)
	assert.ErrorIs(t, err, safe.ErrContentNotFound)
}

// rejectingBox fails every Create.
type rejectingBox struct {
	Box
}

func (rejectingBox) Create(*Run) error {
	return stderrors.New("disk full")
}

func TestRecorder_FailedRecordReleasesContent(t *testing.T) {
	db := setupTestDB(t)
	s, err := safe.New(db, safe.Options{Root: t.TempDir()})
	require.NoError(t, err)

	// Content already archived by an earlier run must keep its reference.
	shared := "contract Token { uint a; }"
	sharedHash, err := s.Store("Token.sol", []byte(shared))
	require.NoError(t, err)

	recorder := NewRecorder(rejectingBox{Box: NewStore(db)}, s, nil)
	r, err := remap.NewRemapper(remap.Options{TempDirectory: "out", Fs: afero.NewMemMapFs()})
	require.NoError(t, err)

	b := bundle.New("/p/b/Main.sol")
	b.Add("/p/a/Token.sol", shared)
	b.Add("/p/b/Main.sol", `import "../a/Token.sol"; contract Main {}`)

	result, err := r.Remap(b)
	require.NoError(t, err)

	_, err = recorder.Record(b, result)
	require.Error(t, err)

	_, err = s.Get(safe.HashContent([]byte(`import "../a/Token.sol"; contract Main {}`)))
	assert.ErrorIs(t, err, safe.ErrContentNotFound)

	got, err := s.Get(sharedHash)
	require.NoError(t, err)
	assert.Equal(t, shared, string(got))

	// One Delete now removes the last reference.
	require.NoError(t, s.Delete(sharedHash))
	_, err = s.Get(sharedHash)
	assert.ErrorIs(t, err, safe.ErrContentNotFound)
}
