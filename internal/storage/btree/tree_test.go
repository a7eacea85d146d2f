package btree

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// openTestTree opens a tree over a fresh file in a temp dir.
func openTestTree(t *testing.T, opts Options) (*Tree, *storage.PageManager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tree.db")
	return openTreeAt(t, path, storage.DefaultOptions(), opts)
}

func openTreeAt(t *testing.T, path string, sopts storage.Options, opts Options) (*Tree, *storage.PageManager, string) {
	t.Helper()
	pm, err := storage.OpenPageManager(path, sopts)
	require.NoError(t, err)
	t.Cleanup(func() { pm.Close() })

	tree, err := Open(pm, opts)
	require.NoError(t, err)
	return tree, pm, path
}

func collectKeys(t *testing.T, tree *Tree) []int64 {
	t.Helper()
	var keys []int64
	it := tree.Iterator()
	for key, _, ok := it.Next(); ok; key, _, ok = it.Next() {
		keys = append(keys, key)
	}
	require.NoError(t, it.Err())
	return keys
}

func keyRange(from, to int64) []int64 {
	var keys []int64
	for k := from; k <= to; k++ {
		keys = append(keys, k)
	}
	return keys
}

func valueFor(k int64) string {
	return fmt.Sprintf("value-%d", k)
}

func insertKeys(t *testing.T, tree *Tree, keys ...int64) {
	t.Helper()
	for _, k := range keys {
		require.NoError(t, tree.Insert(k, valueFor(k)), "insert %d", k)
	}
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// =============================================================================
// Open Tests
// =============================================================================

func TestOpenDefaults(t *testing.T) {
	tree, pm, _ := openTestTree(t, DefaultOptions())

	assert.Equal(t, DefaultLeafOrder, tree.LeafOrder())
	assert.Equal(t, DefaultInternalOrder, tree.InternalOrder())

	h, err := pm.Header()
	require.NoError(t, err)
	assert.Equal(t, DefaultLeafOrder, h.LeafOrder)
	assert.Equal(t, DefaultInternalOrder, h.InternalOrder)
}

func TestOpenNilPageManager(t *testing.T) {
	_, err := Open(nil, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidPageManager)
}

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name       string
		configured int
		recorded   int
		want       int
		err        error
	}{
		{"defaults", 0, 0, 32, nil},
		{"configured", 4, 0, 4, nil},
		{"recorded", 0, 8, 8, nil},
		{"both equal", 8, 8, 8, nil},
		{"mismatch", 4, 8, 0, ErrOrderMismatch},
		{"too small", 2, 0, 0, ErrInvalidOrder},
		{"too large", 33, 0, 0, ErrInvalidOrder},
		{"recorded too large", 0, 40, 0, ErrInvalidOrder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveOrder(tt.configured, tt.recorded, DefaultLeafOrder)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenRecordedOrdersSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders.db")

	pm, err := storage.OpenPageManager(path, storage.DefaultOptions())
	require.NoError(t, err)
	_, err = Open(pm, Options{LeafOrder: 4, InternalOrder: 5})
	require.NoError(t, err)
	require.NoError(t, pm.Close())

	pm, err = storage.OpenPageManager(path, storage.DefaultOptions())
	require.NoError(t, err)
	defer pm.Close()

	tree, err := Open(pm, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, tree.LeafOrder())
	assert.Equal(t, 5, tree.InternalOrder())

	_, err = Open(pm, Options{LeafOrder: 8})
	assert.ErrorIs(t, err, ErrOrderMismatch)
}

// =============================================================================
// Insert and Find Tests
// =============================================================================

func TestInsertFind(t *testing.T) {
	tree, _, _ := openTestTree(t, DefaultOptions())

	insertKeys(t, tree, 5, -3, 17, 0)

	for _, k := range []int64{5, -3, 17, 0} {
		v, err := tree.Find(k)
		require.NoError(t, err)
		assert.Equal(t, valueFor(k), v)
	}

	_, err := tree.Find(99)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, []int64{-3, 0, 5, 17}, collectKeys(t, tree))
}

func TestFindOnFreshFile(t *testing.T) {
	tree, _, _ := openTestTree(t, DefaultOptions())

	_, err := tree.Find(1)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, storage.PageID(1), root)
}

func TestInsertValues(t *testing.T) {
	tree, _, _ := openTestTree(t, DefaultOptions())

	full := strings.Repeat("x", ValueSize)
	require.NoError(t, tree.Insert(1, full))
	require.NoError(t, tree.Insert(2, ""))

	v, err := tree.Find(1)
	require.NoError(t, err)
	assert.Equal(t, full, v)

	v, err = tree.Find(2)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	assert.ErrorIs(t, tree.Insert(3, full+"y"), ErrValueTooLarge)
	assert.ErrorIs(t, tree.Insert(4, "a\x00b"), ErrInvalidValue)

	_, err = tree.Find(3)
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// Scenario A: small leaves force repeated leaf splits.
func TestInsertSplitsLeaves(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})

	insertKeys(t, tree, keyRange(1, 40)...)
	require.NoError(t, tree.Verify())

	assert.Equal(t, keyRange(1, 40), collectKeys(t, tree))

	stats, err := tree.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.LeafNodes, 4)
	assert.Equal(t, int64(40), stats.Keys)
	assert.Equal(t, 2, stats.Height)

	for _, k := range keyRange(1, 40) {
		v, err := tree.Find(k)
		require.NoError(t, err)
		assert.Equal(t, valueFor(k), v)
	}
}

func TestLeafSplitLayout(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})

	insertKeys(t, tree, 1, 2, 3, 4)

	levels, err := tree.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, []int64{3}, levels[0][0].Keys)
	require.Len(t, levels[1], 2)
	assert.Equal(t, []int64{1, 2}, levels[1][0].Keys)
	assert.Equal(t, []int64{3, 4}, levels[1][1].Keys)
	assert.Equal(t, levels[1][1].ID, levels[1][0].RightSibling)
	assert.Equal(t, storage.InvalidPageID, levels[1][1].RightSibling)
	assert.Equal(t, levels[0][0].ID, levels[1][0].Parent)
}

func TestLeavesFollowChain(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})

	leaves, err := tree.Leaves()
	require.NoError(t, err)
	require.Len(t, leaves, 1)
	assert.Empty(t, leaves[0].Keys)

	insertKeys(t, tree, keyRange(1, 20)...)
	leaves, err = tree.Leaves()
	require.NoError(t, err)

	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, levels[len(levels)-1], leaves)

	var keys []int64
	for _, leaf := range leaves {
		keys = append(keys, leaf.Keys...)
	}
	assert.Equal(t, keyRange(1, 20), keys)
}

func TestInternalSplit(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 3, InternalOrder: 3})

	insertKeys(t, tree, keyRange(1, 30)...)
	require.NoError(t, tree.Verify())

	height, err := tree.Height()
	require.NoError(t, err)
	assert.Greater(t, height, 3)

	levels, err := tree.Levels()
	require.NoError(t, err)
	for _, level := range levels {
		for _, n := range level {
			assert.LessOrEqual(t, len(n.Keys), 2)
		}
	}
	assert.Equal(t, keyRange(1, 30), collectKeys(t, tree))
}

// Scenario D: a duplicate insert changes nothing.
func TestInsertDuplicate(t *testing.T) {
	tree, _, path := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 10)...)
	before := readFile(t, path)

	assert.ErrorIs(t, tree.Insert(7, "other"), ErrKeyExists)

	v, err := tree.Find(7)
	require.NoError(t, err)
	assert.Equal(t, valueFor(7), v)
	assert.Equal(t, before, readFile(t, path))
}

func TestTraceAndFindLeaf(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4, InternalOrder: 4})
	insertKeys(t, tree, keyRange(1, 50)...)

	height, err := tree.Height()
	require.NoError(t, err)

	path, err := tree.Trace(37)
	require.NoError(t, err)
	require.Len(t, path, height)

	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, root, path[0])

	leaf, err := tree.FindLeaf(37)
	require.NoError(t, err)
	assert.Equal(t, leaf, path[len(path)-1])

	view, err := tree.Node(leaf)
	require.NoError(t, err)
	assert.True(t, view.Leaf)
	assert.Contains(t, view.Keys, int64(37))
}

func TestSeparatorTiesRouteRight(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, 1, 2, 3, 4)

	levels, err := tree.Levels()
	require.NoError(t, err)
	right := levels[1][1].ID

	leaf, err := tree.FindLeaf(3)
	require.NoError(t, err)
	assert.Equal(t, right, leaf)
}

// =============================================================================
// Delete Tests
// =============================================================================

// Scenario B: emptying the middle leaf merges it away.
func TestDeleteCoalescesMiddleLeaf(t *testing.T) {
	tree, pm, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, 1, 2, 3, 4, 5, 6)

	levels, err := tree.Levels()
	require.NoError(t, err)
	require.Len(t, levels[1], 3)
	assert.Equal(t, []int64{3, 5}, levels[0][0].Keys)
	middle := levels[1][1]
	assert.Equal(t, []int64{3, 4}, middle.Keys)

	for _, k := range middle.Keys {
		require.NoError(t, tree.Delete(k))
		require.NoError(t, tree.Verify())
	}

	levels, err = tree.Levels()
	require.NoError(t, err)
	require.Len(t, levels[1], 2)
	assert.Equal(t, []int64{5}, levels[0][0].Keys)
	assert.NotContains(t, levels[0][0].Children, middle.ID)

	free, err := pm.FreePages()
	require.NoError(t, err)
	assert.Contains(t, free, middle.ID)
	assert.Equal(t, []int64{1, 2, 5, 6}, collectKeys(t, tree))
}

func TestDeleteRedistributesFromRight(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, 1, 2, 3, 4, 5)

	require.NoError(t, tree.Delete(1))
	require.NoError(t, tree.Verify())

	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, levels[0][0].Keys)
	assert.Equal(t, []int64{2, 3}, levels[1][0].Keys)
	assert.Equal(t, []int64{4, 5}, levels[1][1].Keys)
}

func TestDeleteRedistributesFromLeft(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, 10, 20, 30, 40, 15)

	require.NoError(t, tree.Delete(30))
	require.NoError(t, tree.Verify())

	levels, err := tree.Levels()
	require.NoError(t, err)
	assert.Equal(t, []int64{20}, levels[0][0].Keys)
	assert.Equal(t, []int64{10, 15}, levels[1][0].Keys)
	assert.Equal(t, []int64{20, 40}, levels[1][1].Keys)
}

func TestDeleteInternalRebalancing(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 3, InternalOrder: 4})
	insertKeys(t, tree, keyRange(1, 60)...)

	// Delete from both ends and the middle so internal nodes borrow and merge
	// from both sides.
	order := append(keyRange(1, 15), keyRange(46, 60)...)
	order = append(order, keyRange(25, 35)...)
	for _, k := range order {
		require.NoError(t, tree.Delete(k), "delete %d", k)
		require.NoError(t, tree.Verify(), "after delete %d", k)
	}

	want := append(keyRange(16, 24), keyRange(36, 45)...)
	assert.Equal(t, want, collectKeys(t, tree))
}

// Scenario C: deleting the last key empties the tree.
func TestDeleteToEmpty(t *testing.T) {
	tree, pm, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 20)...)

	for _, k := range keyRange(1, 20) {
		require.NoError(t, tree.Delete(k))
		require.NoError(t, tree.Verify())
	}

	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, storage.InvalidPageID, root)

	_, err = tree.Find(5)
	assert.ErrorIs(t, err, ErrTreeEmpty)
	_, err = tree.FindLeaf(5)
	assert.ErrorIs(t, err, ErrTreeEmpty)
	assert.ErrorIs(t, tree.Delete(5), ErrKeyNotFound)

	height, err := tree.Height()
	require.NoError(t, err)
	assert.Equal(t, 0, height)
	assert.Empty(t, collectKeys(t, tree))

	stats, err := pm.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(stats.FreePages), stats.TotalPages-1)

	insertKeys(t, tree, 7)
	v, err := tree.Find(7)
	require.NoError(t, err)
	assert.Equal(t, valueFor(7), v)
	require.NoError(t, tree.Verify())
}

func TestDeleteAbsentKeyLeavesFileUnchanged(t *testing.T) {
	tree, _, path := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 25)...)
	before := readFile(t, path)

	assert.ErrorIs(t, tree.Delete(100), ErrKeyNotFound)
	assert.ErrorIs(t, tree.Delete(-1), ErrKeyNotFound)
	assert.Equal(t, before, readFile(t, path))
}

func TestFreedPagesAreReused(t *testing.T) {
	tree, pm, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 100)...)

	before, err := pm.Header()
	require.NoError(t, err)

	for _, k := range keyRange(1, 100) {
		require.NoError(t, tree.Delete(k))
	}
	insertKeys(t, tree, keyRange(1, 100)...)

	after, err := pm.Header()
	require.NoError(t, err)
	assert.Equal(t, before.NumPages, after.NumPages)
	require.NoError(t, tree.Verify())
}

// =============================================================================
// Property Tests
// =============================================================================

func TestRandomOperationsPreserveInvariants(t *testing.T) {
	configs := []struct {
		name      string
		opts      Options
		cacheSize int
	}{
		{"order 3", Options{LeafOrder: 3, InternalOrder: 3}, storage.DefaultCacheSize},
		{"order 4", Options{LeafOrder: 4, InternalOrder: 4}, storage.DefaultCacheSize},
		{"order 5/6", Options{LeafOrder: 5, InternalOrder: 6}, storage.DefaultCacheSize},
		{"no cache", Options{LeafOrder: 4, InternalOrder: 5}, 0},
		{"defaults", DefaultOptions(), 16},
	}

	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "random.db")
			sopts := storage.DefaultOptions().WithCacheSize(cfg.cacheSize).WithSyncOnFlush(false)
			tree, _, _ := openTreeAt(t, path, sopts, cfg.opts)

			rng := rand.New(rand.NewSource(42))
			model := make(map[int64]string)

			for op := 0; op < 1500; op++ {
				k := int64(rng.Intn(400))
				if _, present := model[k]; present && rng.Intn(3) > 0 {
					require.NoError(t, tree.Delete(k), "op %d delete %d", op, k)
					delete(model, k)
				} else if present {
					require.ErrorIs(t, tree.Insert(k, "dup"), ErrKeyExists)
				} else {
					v := fmt.Sprintf("v%d-%d", k, op)
					require.NoError(t, tree.Insert(k, v), "op %d insert %d", op, k)
					model[k] = v
				}
				if op%25 == 0 {
					require.NoError(t, tree.Verify(), "after op %d", op)
				}
			}
			require.NoError(t, tree.Verify())

			for k, want := range model {
				got, err := tree.Find(k)
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			var want []int64
			for k := range model {
				want = append(want, k)
			}
			slices.Sort(want)
			assert.Equal(t, want, collectKeys(t, tree))
		})
	}
}

func TestLargeTreeDefaultOrders(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large tree test in short mode")
	}
	tree, pm, _ := openTestTree(t, DefaultOptions())
	insertKeys(t, tree, keyRange(1, 5000)...)
	require.NoError(t, tree.Verify())

	height, err := tree.Height()
	require.NoError(t, err)
	assert.Equal(t, 3, height)

	keys := keyRange(1, 5000)
	rand.New(rand.NewSource(7)).Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	for i, k := range keys {
		require.NoError(t, tree.Delete(k))
		if i%500 == 0 {
			require.NoError(t, tree.Verify())
		}
	}

	root, err := tree.Root()
	require.NoError(t, err)
	assert.Equal(t, storage.InvalidPageID, root)

	stats, err := pm.Stats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.NodePages)
}

// =============================================================================
// Persistence and Verification Tests
// =============================================================================

func TestReopenPreservesTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	pm, err := storage.OpenPageManager(path, storage.DefaultOptions())
	require.NoError(t, err)
	tree, err := Open(pm, Options{LeafOrder: 4, InternalOrder: 4})
	require.NoError(t, err)
	insertKeys(t, tree, keyRange(1, 200)...)
	for k := int64(1); k <= 200; k += 3 {
		require.NoError(t, tree.Delete(k))
	}
	require.NoError(t, pm.Close())

	pm, err = storage.OpenPageManager(path, storage.DefaultOptions())
	require.NoError(t, err)
	defer pm.Close()
	tree, err = Open(pm, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, tree.Verify())

	for k := int64(1); k <= 200; k++ {
		v, err := tree.Find(k)
		if (k-1)%3 == 0 {
			assert.ErrorIs(t, err, ErrKeyNotFound, "key %d", k)
			continue
		}
		require.NoError(t, err, "key %d", k)
		assert.Equal(t, valueFor(k), v)
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	tree, pm, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 12)...)
	require.NoError(t, tree.Verify())

	leaf, err := tree.FindLeaf(1)
	require.NoError(t, err)
	page, err := pm.Page(leaf)
	require.NoError(t, err)
	page.SetInt64At(leafKeyOffset(0), 500)

	assert.ErrorIs(t, tree.Verify(), ErrCorrupted)
	pm.Discard()
	require.NoError(t, tree.Verify())
}

func TestVerifyDetectsLostPage(t *testing.T) {
	tree, pm, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 12)...)

	header, err := pm.Page(storage.HeaderPageID)
	require.NoError(t, err)
	header.SetInt64At(0, 0) // drop the free list

	assert.ErrorIs(t, tree.Verify(), ErrCorrupted)
	pm.Discard()
}

func TestConcurrentReaders(t *testing.T) {
	tree, _, _ := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, keyRange(1, 100)...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for k := int64(101); k <= 200; k++ {
			assert.NoError(t, tree.Insert(k, valueFor(k)))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := int64(1); k <= 100; k++ {
				v, err := tree.Find(k)
				assert.NoError(t, err)
				assert.Equal(t, valueFor(k), v)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, tree.Verify())
}

func TestReadOnlyTreeRejectsMutations(t *testing.T) {
	tree, pm, path := openTestTree(t, Options{LeafOrder: 4})
	insertKeys(t, tree, 1, 2, 3)
	require.NoError(t, pm.Close())

	ro, _, _ := openTreeAt(t, path, storage.DefaultOptions().WithReadOnly(true), DefaultOptions())
	assert.ErrorIs(t, ro.Insert(4, "four"), storage.ErrReadOnly)
	assert.ErrorIs(t, ro.Delete(1), storage.ErrReadOnly)

	v, err := ro.Find(2)
	require.NoError(t, err)
	assert.Equal(t, valueFor(2), v)
}
