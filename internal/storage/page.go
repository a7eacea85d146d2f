// Package storage provides the page store and free-page allocator for bpt.
package storage

import (
	"encoding/binary"
)

// PageSize is the size of every page in the database file.
const PageSize = 4096

// NodeHeaderSize is the size of the header shared by leaf and internal pages.
const NodeHeaderSize = 16

// Node header layout.
//   - Bytes 0-7:   Parent (byte offset of the parent page, 0 for the root)
//   - Bytes 8-11:  IsLeaf (int32, 1 for leaves)
//   - Bytes 12-15: NumKeys (int32)
const (
	nodeParentOffset  = 0
	nodeIsLeafOffset  = 8
	nodeNumKeysOffset = 12
)

// freeNextOffset is where a free page stores the link to the next free page.
const freeNextOffset = 0

// PageID identifies a page by its index in the file. Page 0 is the header,
// so 0 doubles as the null reference for parents, siblings and list ends.
type PageID uint64

// InvalidPageID is the null page reference.
const InvalidPageID PageID = 0

// Offset returns the absolute byte offset of the page in the file.
func (id PageID) Offset() int64 {
	return int64(id) * PageSize
}

// PageIDFromOffset converts an on-disk byte offset back into a PageID.
func PageIDFromOffset(offset int64) PageID {
	if offset <= 0 {
		return InvalidPageID
	}
	return PageID(offset / PageSize)
}

// Page is an in-memory copy of one database page. Setters mark the page
// dirty; the buffer pool keeps dirty pages resident until the next flush or
// discard.
type Page struct {
	id    PageID
	data  []byte
	dirty bool
}

// newPage wraps data (which must be PageSize bytes) as page id.
func newPage(id PageID, data []byte) *Page {
	return &Page{id: id, data: data}
}

// ID returns the page ID.
func (p *Page) ID() PageID {
	return p.id
}

// Data returns the raw page bytes. Callers must not modify them directly.
func (p *Page) Data() []byte {
	return p.data
}

// IsDirty returns true if the page has unflushed modifications.
func (p *Page) IsDirty() bool {
	return p.dirty
}

// MarkDirty flags the page for the next flush.
func (p *Page) MarkDirty() {
	p.dirty = true
}

// Int64At reads a little-endian int64 at off.
func (p *Page) Int64At(off int) int64 {
	return int64(binary.LittleEndian.Uint64(p.data[off : off+8]))
}

// SetInt64At writes a little-endian int64 at off.
func (p *Page) SetInt64At(off int, v int64) {
	binary.LittleEndian.PutUint64(p.data[off:off+8], uint64(v))
	p.dirty = true
}

// Int32At reads a little-endian int32 at off.
func (p *Page) Int32At(off int) int32 {
	return int32(binary.LittleEndian.Uint32(p.data[off : off+4]))
}

// SetInt32At writes a little-endian int32 at off.
func (p *Page) SetInt32At(off int, v int32) {
	binary.LittleEndian.PutUint32(p.data[off:off+4], uint32(v))
	p.dirty = true
}

// PageIDAt reads a page reference stored as a byte offset at off.
func (p *Page) PageIDAt(off int) PageID {
	return PageIDFromOffset(p.Int64At(off))
}

// SetPageIDAt stores a page reference as a byte offset at off.
func (p *Page) SetPageIDAt(off int, id PageID) {
	p.SetInt64At(off, id.Offset())
}

// BytesAt returns a copy of n bytes starting at off.
func (p *Page) BytesAt(off, n int) []byte {
	out := make([]byte, n)
	copy(out, p.data[off:off+n])
	return out
}

// SetBytesAt writes exactly n bytes at off, zero-padding src if it is shorter.
func (p *Page) SetBytesAt(off, n int, src []byte) {
	field := p.data[off : off+n]
	copied := copy(field, src)
	for i := copied; i < n; i++ {
		field[i] = 0
	}
	p.dirty = true
}

// ClearRange zeroes n bytes starting at off.
func (p *Page) ClearRange(off, n int) {
	clear(p.data[off : off+n])
	p.dirty = true
}

// Reset zeroes the whole page.
func (p *Page) Reset() {
	clear(p.data)
	p.dirty = true
}

// Parent returns the parent page of a node (InvalidPageID for the root).
func (p *Page) Parent() PageID {
	return p.PageIDAt(nodeParentOffset)
}

// SetParent sets the parent page of a node.
func (p *Page) SetParent(parent PageID) {
	p.SetPageIDAt(nodeParentOffset, parent)
}

// IsLeaf reports whether the node is a leaf.
func (p *Page) IsLeaf() bool {
	return p.Int32At(nodeIsLeafOffset) != 0
}

// SetLeaf sets the leaf flag of a node.
func (p *Page) SetLeaf(leaf bool) {
	var bit int32
	if leaf {
		bit = 1
	}
	p.SetInt32At(nodeIsLeafOffset, bit)
}

// NumKeys returns the number of keys stored in a node.
func (p *Page) NumKeys() int {
	return int(p.Int32At(nodeNumKeysOffset))
}

// SetNumKeys sets the number of keys stored in a node.
func (p *Page) SetNumKeys(n int) {
	p.SetInt32At(nodeNumKeysOffset, int32(n))
}

// NextFree returns the next page in the free list (InvalidPageID at the end).
func (p *Page) NextFree() PageID {
	return p.PageIDAt(freeNextOffset)
}

// SetNextFree links a free page to the next free page.
func (p *Page) SetNextFree(next PageID) {
	p.SetPageIDAt(freeNextOffset, next)
}
