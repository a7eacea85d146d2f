package btree

import (
	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// Iterator walks the leaf chain in key order. It loads one leaf at a time,
// so mutations made during iteration are seen from the next leaf on.
type Iterator struct {
	tree     *Tree
	next     storage.PageID
	entries  []leafEntry
	position int
	visited  int64
	started  bool
	err      error
}

// Iterator returns an iterator positioned before the first key.
func (t *Tree) Iterator() *Iterator {
	return &Iterator{tree: t}
}

// Next advances to the next entry and returns it. ok is false at the end of
// the tree or after an error.
func (it *Iterator) Next() (key int64, value string, ok bool) {
	for it.position >= len(it.entries) {
		if it.err != nil || !it.load() {
			return 0, "", false
		}
	}
	e := it.entries[it.position]
	it.position++
	return e.key, decodeValue(e.value), true
}

// load reads the next leaf of the chain.
func (it *Iterator) load() bool {
	t := it.tree
	t.mu.RLock()
	defer t.mu.RUnlock()

	var leaf node
	if !it.started {
		it.started = true
		first, err := t.firstLeafLocked()
		if errors.Is(err, ErrTreeEmpty) {
			return false
		}
		if err != nil {
			it.err = err
			return false
		}
		leaf = first
	} else {
		if it.next == storage.InvalidPageID {
			return false
		}
		n, err := t.node(it.next)
		if err != nil {
			it.err = err
			return false
		}
		leaf = n
	}

	if !leaf.IsLeaf() {
		it.err = errors.Wrapf(ErrCorrupted, "leaf chain reaches internal page %d", leaf.ID())
		return false
	}
	it.visited++
	if header, err := t.pm.Header(); err == nil && it.visited > header.NumPages {
		it.err = errors.Wrap(ErrCorrupted, "leaf chain contains a cycle")
		return false
	}

	it.entries = leaf.entries()
	it.position = 0
	it.next = leaf.rightSibling()
	return true
}

// Err returns the error that stopped iteration, if any.
func (it *Iterator) Err() error {
	return it.err
}
