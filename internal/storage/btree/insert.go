package btree

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// Insert stores value under key. Duplicate keys are rejected with
// ErrKeyExists and leave the file untouched.
//
// Algorithm:
// 1. Start a new tree if the root is empty
// 2. Otherwise insert into the owning leaf in sorted order
// 3. If the leaf is full, split it and push the new leaf's first key up
// 4. Split full parents on the way up; a root split grows a new root
func (t *Tree) Insert(key int64, value string) error {
	field, err := encodeValue(value)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	_, err = t.findLocked(key)
	switch {
	case err == nil:
		return ErrKeyExists
	case !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrTreeEmpty):
		return err
	}

	return t.update(func() error {
		return t.insert(key, field)
	})
}

func (t *Tree) insert(key int64, field []byte) error {
	entry := leafEntry{key: key, value: field}

	leaf, err := t.findLeafLocked(key)
	if errors.Is(err, ErrTreeEmpty) {
		return t.startNewTree(entry)
	}
	if err != nil {
		return err
	}

	entries := leaf.entries()
	i, _ := slices.BinarySearchFunc(entries, key, compareEntry)
	entries = slices.Insert(entries, i, entry)

	if len(entries) < t.leafOrder {
		leaf.setEntries(entries)
		return nil
	}
	return t.splitLeaf(leaf, entries)
}

func compareEntry(e leafEntry, key int64) int {
	switch {
	case e.key < key:
		return -1
	case e.key > key:
		return 1
	default:
		return 0
	}
}

// startNewTree makes a single-entry leaf the root.
func (t *Tree) startNewTree(entry leafEntry) error {
	page, err := t.pm.Allocate()
	if err != nil {
		return err
	}
	leaf := node{page}
	leaf.SetLeaf(true)
	leaf.setEntries([]leafEntry{entry})
	leaf.setRightSibling(storage.InvalidPageID)

	t.log.Debug("tree started", "root", uint64(leaf.ID()))
	return t.pm.SetRoot(leaf.ID())
}

// splitLeaf distributes the leafOrder entries of an overflowing leaf over the
// leaf and a new right sibling spliced into the leaf chain.
func (t *Tree) splitLeaf(leaf node, entries []leafEntry) error {
	page, err := t.pm.Allocate()
	if err != nil {
		return err
	}
	sibling := node{page}
	sibling.SetLeaf(true)
	sibling.SetParent(leaf.Parent())

	split := cut(t.leafOrder - 1)
	leaf.setEntries(entries[:split])
	sibling.setEntries(entries[split:])

	sibling.setRightSibling(leaf.rightSibling())
	leaf.setRightSibling(sibling.ID())

	t.log.Debug("leaf split",
		"leaf", uint64(leaf.ID()),
		"sibling", uint64(sibling.ID()),
		"separator", entries[split].key)
	return t.insertIntoParent(leaf, entries[split].key, sibling)
}

// insertIntoParent links right into the tree next to left, separated by key.
// Full parents are split and the walk continues one level up.
func (t *Tree) insertIntoParent(left node, key int64, right node) error {
	for {
		parentID := left.Parent()
		if parentID == storage.InvalidPageID {
			return t.insertIntoNewRoot(left, key, right)
		}

		parent, err := t.node(parentID)
		if err != nil {
			return err
		}
		keys, children := parent.keys(), parent.children()

		leftIndex := slices.Index(children, left.ID())
		if leftIndex < 0 {
			return errors.Wrapf(ErrCorrupted, "page %d is not a child of its parent %d", left.ID(), parentID)
		}
		keys = slices.Insert(keys, leftIndex, key)
		children = slices.Insert(children, leftIndex+1, right.ID())
		right.SetParent(parentID)

		if len(keys) < t.order {
			parent.setBranches(keys, children)
			return nil
		}

		sibling, kPrime, err := t.splitInternal(parent, keys, children)
		if err != nil {
			return err
		}
		left, key, right = parent, kPrime, sibling
	}
}

// splitInternal splits an overflowing internal node given as virtual arrays
// of order keys and order+1 children. The old node keeps split-1 keys, key
// split-1 moves up as kPrime, and the rest goes to a new sibling.
func (t *Tree) splitInternal(n node, keys []int64, children []storage.PageID) (node, int64, error) {
	page, err := t.pm.Allocate()
	if err != nil {
		return node{}, 0, err
	}
	sibling := node{page}
	sibling.SetLeaf(false)
	sibling.SetParent(n.Parent())

	split := cut(t.order)
	kPrime := keys[split-1]
	n.setBranches(keys[:split-1], children[:split])
	sibling.setBranches(keys[split:], children[split:])

	for _, id := range children[split:] {
		child, err := t.node(id)
		if err != nil {
			return node{}, 0, err
		}
		child.SetParent(sibling.ID())
	}

	t.log.Debug("internal split",
		"node", uint64(n.ID()),
		"sibling", uint64(sibling.ID()),
		"separator", kPrime)
	return sibling, kPrime, nil
}

// insertIntoNewRoot grows the tree by one level.
func (t *Tree) insertIntoNewRoot(left node, key int64, right node) error {
	page, err := t.pm.Allocate()
	if err != nil {
		return err
	}
	root := node{page}
	root.SetLeaf(false)
	root.setBranches([]int64{key}, []storage.PageID{left.ID(), right.ID()})
	left.SetParent(root.ID())
	right.SetParent(root.ID())

	t.log.Debug("root split", "root", uint64(root.ID()))
	return t.pm.SetRoot(root.ID())
}
