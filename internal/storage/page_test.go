package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageIDOffset(t *testing.T) {
	tests := []struct {
		id     PageID
		offset int64
	}{
		{0, 0},
		{1, 4096},
		{5, 20480},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.offset, tt.id.Offset())
		assert.Equal(t, tt.id, PageIDFromOffset(tt.offset))
	}
	assert.Equal(t, InvalidPageID, PageIDFromOffset(-4096))
}

func TestPageIntegerFields(t *testing.T) {
	p := newPage(3, make([]byte, PageSize))
	require.False(t, p.IsDirty())

	p.SetInt64At(120, -42)
	p.SetInt32At(200, 7)
	assert.True(t, p.IsDirty())
	assert.Equal(t, int64(-42), p.Int64At(120))
	assert.Equal(t, int32(7), p.Int32At(200))

	// Little-endian on disk.
	assert.Equal(t, byte(7), p.Data()[200])
	assert.Equal(t, byte(0), p.Data()[203])
}

func TestPageReferencesStoredAsOffsets(t *testing.T) {
	p := newPage(1, make([]byte, PageSize))
	p.SetParent(2)

	assert.Equal(t, PageID(2), p.Parent())
	assert.Equal(t, int64(8192), p.Int64At(nodeParentOffset))
}

func TestPageNodeHeader(t *testing.T) {
	p := newPage(1, make([]byte, PageSize))
	assert.False(t, p.IsLeaf())

	p.SetLeaf(true)
	p.SetNumKeys(12)
	assert.True(t, p.IsLeaf())
	assert.Equal(t, 12, p.NumKeys())
	assert.Equal(t, int32(1), p.Int32At(nodeIsLeafOffset))

	p.SetLeaf(false)
	assert.False(t, p.IsLeaf())
}

func TestPageBytes(t *testing.T) {
	p := newPage(1, make([]byte, PageSize))
	for i := 136; i < 256; i++ {
		p.Data()[i] = 0xFF
	}

	p.SetBytesAt(136, 120, []byte("hello"))
	got := p.BytesAt(136, 120)
	assert.Equal(t, []byte("hello"), got[:5])
	assert.Equal(t, make([]byte, 115), got[5:])

	// BytesAt returns a copy.
	got[0] = 'X'
	assert.Equal(t, byte('h'), p.Data()[136])

	p.ClearRange(136, 5)
	assert.Equal(t, make([]byte, 5), p.BytesAt(136, 5))
}

func TestPageReset(t *testing.T) {
	p := newPage(1, make([]byte, PageSize))
	p.SetNumKeys(3)
	p.SetNextFree(9)
	p.Reset()

	assert.Equal(t, make([]byte, PageSize), p.Data())
	assert.True(t, p.IsDirty())
}

func TestInitializeLayout(t *testing.T) {
	pages := make([]*Page, InitialPages)
	for i := range pages {
		pages[i] = newPage(PageID(i), make([]byte, PageSize))
	}
	initializeLayout(pages)

	h := readHeader(pages[0])
	assert.Equal(t, PageID(2), h.FreeListHead)
	assert.Equal(t, PageID(1), h.Root)
	assert.Equal(t, int64(5), h.NumPages)
	assert.NoError(t, h.validate())

	assert.True(t, pages[1].IsLeaf())
	assert.Equal(t, 0, pages[1].NumKeys())
	assert.Equal(t, InvalidPageID, pages[1].Parent())

	assert.Equal(t, PageID(3), pages[2].NextFree())
	assert.Equal(t, PageID(4), pages[3].NextFree())
	assert.Equal(t, InvalidPageID, pages[4].NextFree())
}

func TestFileHeaderValidate(t *testing.T) {
	tests := []struct {
		name   string
		header FileHeader
		valid  bool
	}{
		{"fresh", FileHeader{FreeListHead: 2, Root: 1, NumPages: 5}, true},
		{"empty tree", FileHeader{NumPages: 10}, true},
		{"no pages", FileHeader{}, false},
		{"root past end", FileHeader{Root: 5, NumPages: 5}, false},
		{"free head past end", FileHeader{FreeListHead: 9, NumPages: 5}, false},
		{"negative order", FileHeader{NumPages: 5, LeafOrder: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.header.validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrFileCorrupted)
			}
		})
	}
}
