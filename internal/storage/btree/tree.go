// Package btree provides the disk-resident B+ tree of bpt.
package btree

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// Tree errors.
var (
	ErrKeyNotFound        = errors.New("key not found")
	ErrKeyExists          = errors.New("key already exists")
	ErrTreeEmpty          = errors.New("tree is empty")
	ErrValueTooLarge      = errors.New("value exceeds 120 bytes")
	ErrInvalidValue       = errors.New("value contains NUL bytes")
	ErrInvalidPageManager = errors.New("invalid page manager")
	ErrInvalidOrder       = errors.New("invalid tree order")
	ErrOrderMismatch      = errors.New("tree order differs from the one recorded in the file")
	ErrCorrupted          = errors.New("tree is corrupted")
)

// maxHeight bounds descents so a cyclic parent/child chain cannot loop forever.
const maxHeight = 64

// Options configures a Tree. Zero orders mean "use the orders recorded in the
// file, or the defaults for a file that records none".
type Options struct {
	LeafOrder     int
	InternalOrder int
	Logger        logging.Logger
}

// DefaultOptions returns options using the orders recorded in the file.
func DefaultOptions() Options {
	return Options{}
}

// Tree is a B+ tree mapping int64 keys to fixed-size string values, stored
// in the pages of a PageManager. Every mutation runs as one page manager
// update: it is flushed when it completes and discarded when it fails.
type Tree struct {
	pm        *storage.PageManager
	leafOrder int
	order     int
	log       logging.Logger
	mu        sync.RWMutex
}

// Open attaches a Tree to an opened page manager.
func Open(pm *storage.PageManager, opts Options) (*Tree, error) {
	if pm == nil {
		return nil, ErrInvalidPageManager
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	header, err := pm.Header()
	if err != nil {
		return nil, err
	}

	leafOrder, err := resolveOrder(opts.LeafOrder, header.LeafOrder, DefaultLeafOrder)
	if err != nil {
		return nil, errors.Wrap(err, "leaf order")
	}
	order, err := resolveOrder(opts.InternalOrder, header.InternalOrder, DefaultInternalOrder)
	if err != nil {
		return nil, errors.Wrap(err, "internal order")
	}

	t := &Tree{
		pm:        pm,
		leafOrder: leafOrder,
		order:     order,
		log:       opts.Logger,
	}

	if !pm.IsReadOnly() && (header.LeafOrder != leafOrder || header.InternalOrder != order) {
		if err := t.update(func() error {
			return pm.SetOrders(leafOrder, order)
		}); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// resolveOrder picks the order to use from the configured and recorded ones.
func resolveOrder(configured, recorded, def int) (int, error) {
	for _, o := range []int{configured, recorded} {
		if o != 0 && (o < MinOrder || o > def) {
			return 0, errors.Wrapf(ErrInvalidOrder, "%d not in [%d, %d]", o, MinOrder, def)
		}
	}
	switch {
	case configured != 0 && recorded != 0 && configured != recorded:
		return 0, errors.Wrapf(ErrOrderMismatch, "configured %d, file has %d", configured, recorded)
	case configured != 0:
		return configured, nil
	case recorded != 0:
		return recorded, nil
	default:
		return def, nil
	}
}

// LeafOrder returns the leaf order in use.
func (t *Tree) LeafOrder() int {
	return t.leafOrder
}

// InternalOrder returns the internal node order in use.
func (t *Tree) InternalOrder() int {
	return t.order
}

// update runs fn as one page manager update.
func (t *Tree) update(fn func() error) error {
	if t.pm.IsReadOnly() {
		return storage.ErrReadOnly
	}
	t.pm.BeginUpdate()
	if err := fn(); err != nil {
		t.pm.Discard()
		return err
	}
	return t.pm.Flush()
}

// node loads a page as a tree node and sanity-checks its key count.
func (t *Tree) node(id storage.PageID) (node, error) {
	if id == storage.InvalidPageID {
		return node{}, errors.Wrap(ErrCorrupted, "null node reference")
	}
	page, err := t.pm.Page(id)
	if err != nil {
		return node{}, err
	}
	n := node{page}
	if k := n.NumKeys(); k < 0 || k > n.maxKeys() {
		return node{}, errors.Wrapf(ErrCorrupted, "page %d holds %d keys", id, k)
	}
	return n, nil
}

// Root returns the root page, InvalidPageID for an empty tree.
func (t *Tree) Root() (storage.PageID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pm.Root()
}

// findLeafLocked descends from the root to the leaf that owns key. At each
// internal node it follows the first child whose separator exceeds key, so
// a key equal to a separator routes right.
func (t *Tree) findLeafLocked(key int64) (node, error) {
	_, leaf, err := t.descend(key, nil)
	return leaf, err
}

// descend walks from the root to the leaf owning key, reporting every page
// visited to visit when it is not nil. It returns the leaf depth.
func (t *Tree) descend(key int64, visit func(node)) (int, node, error) {
	root, err := t.pm.Root()
	if err != nil {
		return 0, node{}, err
	}
	if root == storage.InvalidPageID {
		return 0, node{}, ErrTreeEmpty
	}

	current, err := t.node(root)
	if err != nil {
		return 0, node{}, err
	}
	for depth := 0; ; depth++ {
		if visit != nil {
			visit(current)
		}
		if current.IsLeaf() {
			return depth, current, nil
		}
		if depth >= maxHeight {
			return 0, node{}, errors.Wrapf(ErrCorrupted, "descent deeper than %d levels", maxHeight)
		}

		i := 0
		for i < current.NumKeys() && key >= current.key(i) {
			i++
		}
		if current, err = t.node(current.child(i)); err != nil {
			return 0, node{}, err
		}
	}
}

// FindLeaf returns the leaf page that owns key.
func (t *Tree) FindLeaf(key int64) (storage.PageID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, err := t.findLeafLocked(key)
	if err != nil {
		return storage.InvalidPageID, err
	}
	return leaf.ID(), nil
}

// Trace returns the pages visited from the root down to the leaf owning key.
func (t *Tree) Trace(key int64) ([]storage.PageID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var path []storage.PageID
	_, _, err := t.descend(key, func(n node) {
		path = append(path, n.ID())
	})
	return path, err
}

// Find returns the value stored under key.
func (t *Tree) Find(key int64) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findLocked(key)
}

func (t *Tree) findLocked(key int64) (string, error) {
	leaf, err := t.findLeafLocked(key)
	if err != nil {
		return "", err
	}
	i := leaf.indexOf(key)
	if i < 0 {
		return "", ErrKeyNotFound
	}
	return decodeValue(leaf.BytesAt(leafKeyOffset(i)+leafValueOffset, ValueSize)), nil
}

// Node returns a snapshot of one node.
func (t *Tree) Node(id storage.PageID) (NodeView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, err := t.node(id)
	if err != nil {
		return NodeView{}, err
	}
	return n.view(), nil
}

// FirstLeaf returns the leftmost leaf, InvalidPageID for an empty tree.
func (t *Tree) FirstLeaf() (storage.PageID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, err := t.firstLeafLocked()
	if errors.Is(err, ErrTreeEmpty) {
		return storage.InvalidPageID, nil
	}
	if err != nil {
		return storage.InvalidPageID, err
	}
	return leaf.ID(), nil
}

func (t *Tree) firstLeafLocked() (node, error) {
	_, leaf, err := t.leftmost()
	return leaf, err
}

// leftmost follows child 0 from the root, returning the leaf and its depth.
func (t *Tree) leftmost() (int, node, error) {
	root, err := t.pm.Root()
	if err != nil {
		return 0, node{}, err
	}
	if root == storage.InvalidPageID {
		return 0, node{}, ErrTreeEmpty
	}
	current, err := t.node(root)
	if err != nil {
		return 0, node{}, err
	}
	for depth := 0; ; depth++ {
		if current.IsLeaf() {
			return depth, current, nil
		}
		if depth >= maxHeight {
			return 0, node{}, errors.Wrapf(ErrCorrupted, "descent deeper than %d levels", maxHeight)
		}
		if current, err = t.node(current.child(0)); err != nil {
			return 0, node{}, err
		}
	}
}

// Height returns the number of levels, 0 for an empty tree.
func (t *Tree) Height() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	depth, _, err := t.leftmost()
	if errors.Is(err, ErrTreeEmpty) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return depth + 1, nil
}

// Levels returns the tree in level order, root level first.
func (t *Tree) Levels() ([][]NodeView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	root, err := t.pm.Root()
	if err != nil || root == storage.InvalidPageID {
		return nil, err
	}

	var levels [][]NodeView
	frontier := []storage.PageID{root}
	for len(frontier) > 0 {
		if len(levels) >= maxHeight {
			return nil, errors.Wrapf(ErrCorrupted, "more than %d levels", maxHeight)
		}
		level := make([]NodeView, 0, len(frontier))
		var next []storage.PageID
		for _, id := range frontier {
			n, err := t.node(id)
			if err != nil {
				return nil, err
			}
			v := n.view()
			level = append(level, v)
			next = append(next, v.Children...)
		}
		levels = append(levels, level)
		frontier = next
	}
	return levels, nil
}

// Leaves returns the leaves in right-sibling chain order.
func (t *Tree) Leaves() ([]NodeView, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf, err := t.firstLeafLocked()
	if errors.Is(err, ErrTreeEmpty) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	header, err := t.pm.Header()
	if err != nil {
		return nil, err
	}

	var leaves []NodeView
	for {
		if int64(len(leaves)) >= header.NumPages {
			return nil, errors.Wrap(ErrCorrupted, "leaf chain contains a cycle")
		}
		v := leaf.view()
		leaves = append(leaves, v)
		if v.RightSibling == storage.InvalidPageID {
			return leaves, nil
		}
		if leaf, err = t.node(v.RightSibling); err != nil {
			return nil, err
		}
	}
}

// Stats contains statistics about the tree.
type Stats struct {
	Height        int
	Keys          int64
	LeafNodes     int
	InternalNodes int
	LeafOrder     int
	InternalOrder int
	Storage       storage.Stats
}

// Stats returns current tree statistics.
func (t *Tree) Stats() (Stats, error) {
	levels, err := t.Levels()
	if err != nil {
		return Stats{}, err
	}
	st, err := t.pm.Stats()
	if err != nil {
		return Stats{}, err
	}

	s := Stats{
		Height:        len(levels),
		LeafOrder:     t.leafOrder,
		InternalOrder: t.order,
		Storage:       st,
	}
	for _, level := range levels {
		for _, n := range level {
			if n.Leaf {
				s.LeafNodes++
				s.Keys += int64(len(n.Keys))
			} else {
				s.InternalNodes++
			}
		}
	}
	return s, nil
}
