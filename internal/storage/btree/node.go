package btree

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// B+ tree constants.
const (
	// DefaultLeafOrder is the leaf order: a leaf holds at most LeafOrder-1 entries.
	DefaultLeafOrder = 32

	// DefaultInternalOrder is the maximum number of children per internal node.
	DefaultInternalOrder = 249

	// MinOrder is the smallest order either node kind accepts.
	MinOrder = 3

	// ValueSize is the fixed size of a value field.
	ValueSize = 120
)

// Node body layout. Leaves store a right sibling at 120 and entry i (key,
// value) at (i+1)*128. Internal nodes interleave child i at 120+16i with
// key i at 128+16i.
const (
	leafSiblingOffset  = 120
	leafSlotSize       = 128
	leafValueOffset    = 8
	internalChildBase  = 120
	internalKeyBase    = 128
	internalSlotStride = 16

	maxLeafEntries  = DefaultLeafOrder - 1
	maxInternalKeys = DefaultInternalOrder - 1
)

// cut returns the split point for n, ceil(n/2).
func cut(n int) int {
	return (n + 1) / 2
}

// leafEntry is one key/value slot of a leaf.
type leafEntry struct {
	key   int64
	value []byte
}

// node is a typed view over a tree page.
type node struct {
	*storage.Page
}

func (n node) maxKeys() int {
	if n.IsLeaf() {
		return maxLeafEntries
	}
	return maxInternalKeys
}

func leafKeyOffset(i int) int {
	return (i + 1) * leafSlotSize
}

func internalKeyOffset(i int) int {
	return internalKeyBase + i*internalSlotStride
}

func internalChildOffset(i int) int {
	return internalChildBase + i*internalSlotStride
}

// key returns key i of a leaf or internal node.
func (n node) key(i int) int64 {
	if n.IsLeaf() {
		return n.Int64At(leafKeyOffset(i))
	}
	return n.Int64At(internalKeyOffset(i))
}

// setKey overwrites key i of a leaf or internal node.
func (n node) setKey(i int, k int64) {
	if n.IsLeaf() {
		n.SetInt64At(leafKeyOffset(i), k)
		return
	}
	n.SetInt64At(internalKeyOffset(i), k)
}

func (n node) child(i int) storage.PageID {
	return n.PageIDAt(internalChildOffset(i))
}

func (n node) rightSibling() storage.PageID {
	return n.PageIDAt(leafSiblingOffset)
}

func (n node) setRightSibling(id storage.PageID) {
	n.SetPageIDAt(leafSiblingOffset, id)
}

// indexOf returns the slot holding key in a leaf, or -1.
func (n node) indexOf(key int64) int {
	for i := 0; i < n.NumKeys(); i++ {
		if n.key(i) == key {
			return i
		}
	}
	return -1
}

// entries returns a copy of a leaf's entries.
func (n node) entries() []leafEntry {
	count := n.NumKeys()
	out := make([]leafEntry, count)
	for i := 0; i < count; i++ {
		off := leafKeyOffset(i)
		out[i] = leafEntry{
			key:   n.Int64At(off),
			value: n.BytesAt(off+leafValueOffset, ValueSize),
		}
	}
	return out
}

// setEntries rewrites a leaf's entries, clearing slots no longer in use.
func (n node) setEntries(es []leafEntry) {
	old := n.NumKeys()
	for i, e := range es {
		off := leafKeyOffset(i)
		n.SetInt64At(off, e.key)
		n.SetBytesAt(off+leafValueOffset, ValueSize, e.value)
	}
	for i := len(es); i < old; i++ {
		n.ClearRange(leafKeyOffset(i), leafSlotSize)
	}
	n.SetNumKeys(len(es))
}

// keys returns a copy of an internal node's keys.
func (n node) keys() []int64 {
	count := n.NumKeys()
	out := make([]int64, count)
	for i := range out {
		out[i] = n.Int64At(internalKeyOffset(i))
	}
	return out
}

// children returns a copy of an internal node's child references.
func (n node) children() []storage.PageID {
	count := n.NumKeys() + 1
	out := make([]storage.PageID, count)
	for i := range out {
		out[i] = n.child(i)
	}
	return out
}

// setBranches rewrites an internal node; len(children) must be len(keys)+1.
func (n node) setBranches(keys []int64, children []storage.PageID) {
	old := n.NumKeys()
	for i, k := range keys {
		n.SetInt64At(internalKeyOffset(i), k)
	}
	for i, c := range children {
		n.SetPageIDAt(internalChildOffset(i), c)
	}
	for i := len(keys); i < old; i++ {
		n.ClearRange(internalKeyOffset(i), 8)
	}
	for i := len(children); i <= old; i++ {
		n.ClearRange(internalChildOffset(i), 8)
	}
	n.SetNumKeys(len(keys))
}

// encodeValue converts a value into its fixed on-disk field. The field is
// NUL padded and carries no length, so values may not contain NUL.
func encodeValue(value string) ([]byte, error) {
	if len(value) > ValueSize {
		return nil, errors.Wrapf(ErrValueTooLarge, "%d bytes", len(value))
	}
	if bytes.IndexByte([]byte(value), 0) >= 0 {
		return nil, ErrInvalidValue
	}
	field := make([]byte, ValueSize)
	copy(field, value)
	return field, nil
}

// decodeValue reads a value field up to the first NUL.
func decodeValue(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// NodeView is a read-only snapshot of one tree node.
type NodeView struct {
	ID           storage.PageID
	Parent       storage.PageID
	Leaf         bool
	Keys         []int64
	Values       []string         // leaves only
	Children     []storage.PageID // internal nodes only
	RightSibling storage.PageID   // leaves only
}

func (n node) view() NodeView {
	v := NodeView{
		ID:     n.ID(),
		Parent: n.Parent(),
		Leaf:   n.IsLeaf(),
	}
	if v.Leaf {
		for _, e := range n.entries() {
			v.Keys = append(v.Keys, e.key)
			v.Values = append(v.Values, decodeValue(e.value))
		}
		v.RightSibling = n.rightSibling()
		return v
	}
	v.Keys = n.keys()
	v.Children = n.children()
	return v
}
