package storage

// Header page layout (page 0).
//   - Bytes 0-7:   FreeListHead (byte offset of the first free page, 0 if none)
//   - Bytes 8-15:  Root (byte offset of the root node, 0 for an empty tree)
//   - Bytes 16-23: NumPages (int64)
//   - Bytes 24-27: LeafOrder (int32, 0 if unrecorded)
//   - Bytes 28-31: InternalOrder (int32, 0 if unrecorded)
//   - Bytes 32-4095: Reserved
const (
	headerFreeListOffset      = 0
	headerRootOffset          = 8
	headerNumPagesOffset      = 16
	headerLeafOrderOffset     = 24
	headerInternalOrderOffset = 28
)

// HeaderPageID is the page holding the file header.
const HeaderPageID PageID = 0

// Initial file layout created on first open.
const (
	InitialPages   = 5
	initialRoot    = PageID(1)
	initialFreeHead = PageID(2)
)

// FileHeader is a snapshot of the header page fields.
type FileHeader struct {
	FreeListHead  PageID
	Root          PageID
	NumPages      int64
	LeafOrder     int
	InternalOrder int
}

// readHeader decodes the header fields from page 0.
func readHeader(p *Page) FileHeader {
	return FileHeader{
		FreeListHead:  p.PageIDAt(headerFreeListOffset),
		Root:          p.PageIDAt(headerRootOffset),
		NumPages:      p.Int64At(headerNumPagesOffset),
		LeafOrder:     int(p.Int32At(headerLeafOrderOffset)),
		InternalOrder: int(p.Int32At(headerInternalOrderOffset)),
	}
}

// validate checks that the header describes a plausible file.
func (h FileHeader) validate() error {
	if h.NumPages < 2 {
		return ErrFileCorrupted
	}
	if int64(h.Root) >= h.NumPages || int64(h.FreeListHead) >= h.NumPages {
		return ErrFileCorrupted
	}
	if h.LeafOrder < 0 || h.InternalOrder < 0 {
		return ErrFileCorrupted
	}
	return nil
}

// initializeLayout writes the header, an empty root leaf and a chain of three
// free pages into freshly created pages 0..4.
func initializeLayout(pages []*Page) {
	header := pages[0]
	header.SetPageIDAt(headerFreeListOffset, initialFreeHead)
	header.SetPageIDAt(headerRootOffset, initialRoot)
	header.SetInt64At(headerNumPagesOffset, InitialPages)

	root := pages[initialRoot]
	root.SetParent(InvalidPageID)
	root.SetLeaf(true)
	root.SetNumKeys(0)

	for i := int(initialFreeHead); i < InitialPages; i++ {
		next := PageID(i + 1)
		if i == InitialPages-1 {
			next = InvalidPageID
		}
		pages[i].SetNextFree(next)
	}
}
