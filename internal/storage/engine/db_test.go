package engine

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
)

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "engine.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.db")

	db, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, path, db.Path())
	assert.NotEmpty(t, db.SessionID())
	assert.False(t, db.IsReadOnly())

	require.NoError(t, db.Insert(1, "one"))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db, err = Open(path, DefaultOptions())
	require.NoError(t, err)
	defer db.Close()

	v, err := db.Find(1)
	require.NoError(t, err)
	assert.Equal(t, "one", v)
}

func TestInsertFindDelete(t *testing.T) {
	opts := DefaultOptions()
	opts.Tree.LeafOrder = 4
	db := openTestDB(t, opts)

	for k := int64(1); k <= 50; k++ {
		require.NoError(t, db.Insert(k, strings.Repeat("v", int(k%10))))
	}
	assert.ErrorIs(t, db.Insert(10, "dup"), btree.ErrKeyExists)

	for k := int64(1); k <= 50; k += 2 {
		require.NoError(t, db.Delete(k))
	}
	assert.ErrorIs(t, db.Delete(1), btree.ErrKeyNotFound)
	require.NoError(t, db.Verify())

	_, err := db.Find(3)
	assert.ErrorIs(t, err, btree.ErrKeyNotFound)
	v, err := db.Find(4)
	require.NoError(t, err)
	assert.Equal(t, "vvvv", v)

	it, err := db.Iterator()
	require.NoError(t, err)
	count := 0
	for _, _, ok := it.Next(); ok; _, _, ok = it.Next() {
		count++
	}
	require.NoError(t, it.Err())
	assert.Equal(t, 25, count)

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(50), stats.Inserts)
	assert.Equal(t, uint64(25), stats.Deletes)
	assert.Equal(t, int64(25), stats.Tree.Keys)
	assert.Equal(t, 4, stats.Tree.LeafOrder)
	assert.Equal(t, db.SessionID(), stats.SessionID)
}

func TestInspection(t *testing.T) {
	opts := DefaultOptions()
	opts.Tree.LeafOrder = 4
	db := openTestDB(t, opts)
	for k := int64(1); k <= 10; k++ {
		require.NoError(t, db.Insert(k, "x"))
	}

	levels, err := db.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 2)

	path, err := db.Trace(7)
	require.NoError(t, err)
	require.Len(t, path, 2)

	leaf, err := db.FindLeaf(7)
	require.NoError(t, err)
	assert.Equal(t, path[1], leaf)

	view, err := db.Node(leaf)
	require.NoError(t, err)
	assert.Contains(t, view.Keys, int64(7))

	leaves, err := db.Leaves()
	require.NoError(t, err)
	assert.Equal(t, levels[1], leaves)
}

func TestClosedDatabaseOperations(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "closed.db"), DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Insert(1, "x"), ErrDatabaseClosed)
	assert.ErrorIs(t, db.Delete(1), ErrDatabaseClosed)
	_, err = db.Find(1)
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.Levels()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	_, err = db.Iterator()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
	assert.ErrorIs(t, db.Verify(), ErrDatabaseClosed)
	_, err = db.Stats()
	assert.ErrorIs(t, err, ErrDatabaseClosed)
}

func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	db, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, db.Insert(1, "one"))
	require.NoError(t, db.Close())

	opts := DefaultOptions()
	opts.Storage = opts.Storage.WithReadOnly(true)
	ro, err := Open(path, opts)
	require.NoError(t, err)
	defer ro.Close()

	assert.True(t, ro.IsReadOnly())
	assert.ErrorIs(t, ro.Insert(2, "two"), storage.ErrReadOnly)
	v, err := ro.Find(1)
	require.NoError(t, err)
	assert.Equal(t, "one", v)
}

func TestOpenOrderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")
	opts := DefaultOptions()
	opts.Tree.LeafOrder = 4
	db, err := Open(path, opts)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	opts.Tree.LeafOrder = 6
	_, err = Open(path, opts)
	assert.ErrorIs(t, err, btree.ErrOrderMismatch)
}

func TestSessionLogging(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = logging.NewWithWriter(logging.Config{Level: "debug", Format: "json"}, &buf)

	db := openTestDB(t, opts)
	require.NoError(t, db.Insert(1, "one"))
	assert.ErrorIs(t, db.Insert(1, "again"), btree.ErrKeyExists)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var sawRejected bool
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, db.SessionID(), entry["session_id"])
		if entry["msg"] == "insert rejected" {
			sawRejected = true
			assert.Equal(t, "debug", entry["level"])
		}
	}
	assert.True(t, sawRejected)
}
