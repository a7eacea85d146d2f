package btree

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// verifier accumulates state while checking the tree.
type verifier struct {
	t         *Tree
	seen      map[storage.PageID]bool
	leaves    []storage.PageID
	leafDepth int
}

// Verify checks the structural invariants of the tree and the page
// partition of the file:
//   - keys strictly increase within a node and stay inside the bounds set
//     by the separators above them
//   - every non-root node respects its occupancy bounds
//   - every child names its parent and no page has two parents
//   - all leaves are at the same depth
//   - the leaf chain visits exactly the leaves in key order and ends in 0
//   - every page other than the header is either live or free, never both
func (t *Tree) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	header, err := t.pm.Header()
	if err != nil {
		return err
	}

	v := &verifier{t: t, seen: make(map[storage.PageID]bool), leafDepth: -1}
	if header.Root != storage.InvalidPageID {
		root, err := t.node(header.Root)
		if err != nil {
			return err
		}
		if root.Parent() != storage.InvalidPageID {
			return errors.Wrapf(ErrCorrupted, "root %d has parent %d", root.ID(), root.Parent())
		}
		if err := v.walk(root, 0, nil, nil); err != nil {
			return err
		}
		if err := v.checkLeafChain(); err != nil {
			return err
		}
	}

	free, err := t.pm.FreePages()
	if err != nil {
		return err
	}
	for _, id := range free {
		if v.seen[id] {
			return errors.Wrapf(ErrCorrupted, "page %d is both live and free", id)
		}
		v.seen[id] = true
	}
	for id := storage.PageID(1); int64(id) < header.NumPages; id++ {
		if !v.seen[id] {
			return errors.Wrapf(ErrCorrupted, "page %d is neither live nor free", id)
		}
	}
	return nil
}

// walk checks the subtree at n, whose keys must lie in [lo, hi).
func (v *verifier) walk(n node, depth int, lo, hi *int64) error {
	t := v.t
	id := n.ID()
	if v.seen[id] {
		return errors.Wrapf(ErrCorrupted, "page %d is reachable twice", id)
	}
	v.seen[id] = true
	if depth >= maxHeight {
		return errors.Wrapf(ErrCorrupted, "page %d deeper than %d levels", id, maxHeight)
	}

	count := n.NumKeys()
	isRoot := depth == 0
	if count > t.maxKeys(n) || (!isRoot && count < t.minKeys(n)) {
		return errors.Wrapf(ErrCorrupted, "page %d holds %d keys", id, count)
	}
	if isRoot && !n.IsLeaf() && count == 0 {
		return errors.Wrapf(ErrCorrupted, "internal root %d has no keys", id)
	}

	for i := 0; i < count; i++ {
		k := n.key(i)
		if i > 0 && k <= n.key(i-1) {
			return errors.Wrapf(ErrCorrupted, "page %d keys out of order at slot %d", id, i)
		}
		if (lo != nil && k < *lo) || (hi != nil && k >= *hi) {
			return errors.Wrapf(ErrCorrupted, "page %d key %d outside separator bounds", id, k)
		}
	}

	if n.IsLeaf() {
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errors.Wrapf(ErrCorrupted, "leaf %d at depth %d, expected %d", id, depth, v.leafDepth)
		}
		v.leaves = append(v.leaves, id)
		return nil
	}

	keys := n.keys()
	for i, childID := range n.children() {
		child, err := t.node(childID)
		if err != nil {
			return err
		}
		if child.Parent() != id {
			return errors.Wrapf(ErrCorrupted, "page %d names parent %d, expected %d", childID, child.Parent(), id)
		}
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &keys[i-1]
		}
		if i < len(keys) {
			childHi = &keys[i]
		}
		if err := v.walk(child, depth+1, childLo, childHi); err != nil {
			return err
		}
	}
	return nil
}

// checkLeafChain follows right siblings from the first leaf and compares the
// chain with the leaves found by the walk.
func (v *verifier) checkLeafChain() error {
	id := v.leaves[0]
	for i, want := range v.leaves {
		if id != want {
			return errors.Wrapf(ErrCorrupted, "leaf chain position %d is page %d, expected %d", i, id, want)
		}
		leaf, err := v.t.node(id)
		if err != nil {
			return err
		}
		id = leaf.rightSibling()
	}
	if id != storage.InvalidPageID {
		return errors.Wrapf(ErrCorrupted, "last leaf links to page %d", id)
	}
	return nil
}
