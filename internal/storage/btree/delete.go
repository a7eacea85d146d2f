package btree

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// Delete removes key from the tree. An absent key returns ErrKeyNotFound
// and leaves the file untouched.
//
// Algorithm:
// 1. Remove the entry from its leaf
// 2. If the leaf underflows, merge it with a sibling when both fit in one
//    node, otherwise borrow one entry from the sibling
// 3. A merge removes the separator from the parent, which may underflow in
//    turn; the walk continues upward
// 4. An emptied root is collapsed
func (t *Tree) Delete(key int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.findLocked(key); err != nil {
		if errors.Is(err, ErrTreeEmpty) {
			return ErrKeyNotFound
		}
		return err
	}

	return t.update(func() error {
		leaf, err := t.findLeafLocked(key)
		if err != nil {
			return err
		}
		return t.deleteEntry(leaf, leaf.indexOf(key))
	})
}

// minKeys is the occupancy floor for a non-root node.
func (t *Tree) minKeys(n node) int {
	if n.IsLeaf() {
		return cut(t.leafOrder - 1)
	}
	return cut(t.order) - 1
}

// maxKeys is the largest key count a node of the configured orders holds.
func (t *Tree) maxKeys(n node) int {
	if n.IsLeaf() {
		return t.leafOrder - 1
	}
	return t.order - 1
}

// capacity bounds the combined size of two nodes that may be merged.
func (t *Tree) capacity(n node) int {
	if n.IsLeaf() {
		return t.leafOrder
	}
	return t.order - 1
}

// removeFromNode drops slot index: the entry of a leaf, or key index and the
// child to its right of an internal node.
func removeFromNode(n node, index int) {
	if n.IsLeaf() {
		n.setEntries(slices.Delete(n.entries(), index, index+1))
		return
	}
	n.setBranches(
		slices.Delete(n.keys(), index, index+1),
		slices.Delete(n.children(), index+1, index+2),
	)
}

// deleteEntry removes slot index from n and repairs underflow, walking up the
// parent chain while merges keep removing separators.
func (t *Tree) deleteEntry(n node, index int) error {
	for {
		if index < 0 || index >= n.NumKeys() {
			return errors.Wrapf(ErrCorrupted, "slot %d out of range in page %d", index, n.ID())
		}
		removeFromNode(n, index)

		parentID := n.Parent()
		if parentID == storage.InvalidPageID {
			return t.adjustRoot(n)
		}
		if n.NumKeys() >= t.minKeys(n) {
			return nil
		}

		parent, err := t.node(parentID)
		if err != nil {
			return err
		}
		children := parent.children()
		nIndex := slices.Index(children, n.ID())
		if nIndex < 0 {
			return errors.Wrapf(ErrCorrupted, "page %d is not a child of its parent %d", n.ID(), parentID)
		}
		if len(children) < 2 {
			return errors.Wrapf(ErrCorrupted, "non-root page %d has no siblings", n.ID())
		}

		// The left sibling is preferred; the leftmost child uses its right one.
		neighborIsRight := nIndex == 0
		neighborID, kPrimeIndex := storage.InvalidPageID, 0
		if neighborIsRight {
			neighborID = children[1]
		} else {
			neighborID, kPrimeIndex = children[nIndex-1], nIndex-1
		}
		neighbor, err := t.node(neighborID)
		if err != nil {
			return err
		}
		if neighbor.IsLeaf() != n.IsLeaf() {
			return errors.Wrapf(ErrCorrupted, "siblings %d and %d differ in kind", n.ID(), neighbor.ID())
		}
		kPrime := parent.key(kPrimeIndex)

		if neighbor.NumKeys()+n.NumKeys() >= t.capacity(n) {
			return t.redistribute(n, neighbor, neighborIsRight, parent, kPrimeIndex, kPrime)
		}

		left, right := neighbor, n
		if neighborIsRight {
			left, right = n, neighbor
		}
		if err := t.coalesce(left, right, kPrime); err != nil {
			return err
		}
		n, index = parent, kPrimeIndex
	}
}

// adjustRoot collapses a root left empty by a deletion.
func (t *Tree) adjustRoot(root node) error {
	if root.NumKeys() > 0 {
		return nil
	}

	newRoot := storage.InvalidPageID
	if !root.IsLeaf() {
		child, err := t.node(root.child(0))
		if err != nil {
			return err
		}
		child.SetParent(storage.InvalidPageID)
		newRoot = child.ID()
	}

	if err := t.pm.SetRoot(newRoot); err != nil {
		return err
	}
	t.log.Debug("root collapsed", "old_root", uint64(root.ID()), "new_root", uint64(newRoot))
	return t.pm.Free(root.ID())
}

// coalesce appends right to left and frees right. For internal nodes the
// separator kPrime is pulled down between the two key runs.
func (t *Tree) coalesce(left, right node, kPrime int64) error {
	if left.IsLeaf() {
		left.setEntries(append(left.entries(), right.entries()...))
		left.setRightSibling(right.rightSibling())
	} else {
		moved := right.children()
		keys := append(append(left.keys(), kPrime), right.keys()...)
		left.setBranches(keys, append(left.children(), moved...))

		for _, id := range moved {
			child, err := t.node(id)
			if err != nil {
				return err
			}
			child.SetParent(left.ID())
		}
	}

	t.log.Debug("nodes merged", "into", uint64(left.ID()), "freed", uint64(right.ID()))
	return t.pm.Free(right.ID())
}

// redistribute moves one entry from neighbor into n and rewrites the
// separator between them. Internal nodes rotate through the parent: the
// separator comes down into n and the neighbor's edge key goes up.
func (t *Tree) redistribute(n, neighbor node, neighborIsRight bool, parent node, kPrimeIndex int, kPrime int64) error {
	var moved storage.PageID

	switch {
	case n.IsLeaf() && !neighborIsRight:
		from := neighbor.entries()
		last := from[len(from)-1]
		neighbor.setEntries(from[:len(from)-1])
		n.setEntries(slices.Insert(n.entries(), 0, last))
		parent.setKey(kPrimeIndex, last.key)

	case n.IsLeaf() && neighborIsRight:
		from := neighbor.entries()
		neighbor.setEntries(from[1:])
		n.setEntries(append(n.entries(), from[0]))
		parent.setKey(kPrimeIndex, from[1].key)

	case !neighborIsRight:
		keys, children := neighbor.keys(), neighbor.children()
		lastKey := keys[len(keys)-1]
		moved = children[len(children)-1]
		neighbor.setBranches(keys[:len(keys)-1], children[:len(children)-1])
		n.setBranches(slices.Insert(n.keys(), 0, kPrime), slices.Insert(n.children(), 0, moved))
		parent.setKey(kPrimeIndex, lastKey)

	default:
		keys, children := neighbor.keys(), neighbor.children()
		moved = children[0]
		n.setBranches(append(n.keys(), kPrime), append(n.children(), moved))
		parent.setKey(kPrimeIndex, keys[0])
		neighbor.setBranches(keys[1:], children[1:])
	}

	if !n.IsLeaf() {
		child, err := t.node(moved)
		if err != nil {
			return err
		}
		child.SetParent(n.ID())
	}

	t.log.Debug("entry redistributed",
		"node", uint64(n.ID()),
		"neighbor", uint64(neighbor.ID()),
		"separator", parent.key(kPrimeIndex))
	return nil
}
