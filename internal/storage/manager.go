package storage

import (
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/logging"
)

// Errors for PageManager operations.
var (
	ErrFileClosed       = errors.New("page manager is closed")
	ErrPageOutOfRange   = errors.New("page ID out of range")
	ErrCannotFreeHeader = errors.New("cannot free header page")
	ErrFileCorrupted    = errors.New("file is corrupted")
	ErrFreeListCycle    = errors.New("free list contains a cycle")
	ErrReadOnly         = errors.New("page manager is read-only")
)

// PageManager owns the database file. It hands out pages through a buffer
// pool, keeps the header fields, and runs the free-page allocator.
type PageManager struct {
	file     *os.File
	path     string
	opts     Options
	pool     *BufferPool
	freeList *freeList
	log      logging.Logger

	inUpdate     bool
	closed       bool
	flushes      uint64
	pagesWritten uint64

	mu sync.Mutex
}

// OpenPageManager opens the database file at path. A missing or empty file
// is initialized with a header, an empty root leaf and three free pages;
// an existing file must carry a valid header.
func OpenPageManager(path string, opts Options) (*PageManager, error) {
	opts = opts.normalize()

	flag := os.O_RDWR
	if opts.ReadOnly {
		flag = os.O_RDONLY
	} else if opts.CreateIfNew {
		flag |= os.O_CREATE
	}

	file, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "stat %s", path)
	}

	pm := &PageManager{
		file: file,
		path: path,
		opts: opts,
		pool: NewBufferPool(opts.CacheSize),
		log:  opts.Logger.WithFields("path", path),
	}
	pm.freeList = newFreeList(pm, opts.GrowthPages)

	if info.Size() == 0 {
		if opts.ReadOnly {
			file.Close()
			return nil, errors.Wrapf(ErrFileCorrupted, "%s is empty", path)
		}
		if err := pm.initialize(); err != nil {
			file.Close()
			return nil, err
		}
		pm.log.Info("database file created", "pages", InitialPages)
		return pm, nil
	}

	header, err := pm.Header()
	if err != nil {
		file.Close()
		return nil, err
	}
	if err := header.validate(); err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "invalid header in %s", path)
	}

	pm.log.Info("database file opened",
		"pages", header.NumPages,
		"root", uint64(header.Root),
		"read_only", opts.ReadOnly)
	return pm, nil
}

// initialize writes the initial five-page layout.
func (pm *PageManager) initialize() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pages := make([]*Page, InitialPages)
	for i := range pages {
		pages[i] = newPage(PageID(i), make([]byte, PageSize))
	}
	initializeLayout(pages)

	pm.pool.Hold()
	for _, page := range pages {
		page.MarkDirty()
		pm.pool.Put(page)
	}
	return pm.flushLocked()
}

// Page returns the in-memory copy of a page, reading it on a cache miss.
// Bytes beyond the end of the file read as zeros.
func (pm *PageManager) Page(id PageID) (*Page, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.pageLocked(id)
}

func (pm *PageManager) pageLocked(id PageID) (*Page, error) {
	if pm.closed {
		return nil, ErrFileClosed
	}
	if page, ok := pm.pool.Get(id); ok {
		return page, nil
	}

	if id != HeaderPageID {
		header, err := pm.pageLocked(HeaderPageID)
		if err != nil {
			return nil, err
		}
		if numPages := header.Int64At(headerNumPagesOffset); int64(id) >= numPages {
			return nil, errors.Wrapf(ErrPageOutOfRange, "page %d of %d", id, numPages)
		}
	}

	data := make([]byte, PageSize)
	if _, err := pm.file.ReadAt(data, id.Offset()); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read page %d", id)
	}
	page := newPage(id, data)
	pm.pool.Put(page)
	return page, nil
}

// Header returns a snapshot of the header fields.
func (pm *PageManager) Header() (FileHeader, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	page, err := pm.pageLocked(HeaderPageID)
	if err != nil {
		return FileHeader{}, err
	}
	return readHeader(page), nil
}

// Root returns the root node page, InvalidPageID for an empty tree.
func (pm *PageManager) Root() (PageID, error) {
	header, err := pm.Header()
	if err != nil {
		return InvalidPageID, err
	}
	return header.Root, nil
}

// SetRoot records a new root node page.
func (pm *PageManager) SetRoot(id PageID) error {
	return pm.updateHeader(func(header *Page) {
		header.SetPageIDAt(headerRootOffset, id)
	})
}

// SetOrders records the tree orders the file was built with.
func (pm *PageManager) SetOrders(leafOrder, internalOrder int) error {
	return pm.updateHeader(func(header *Page) {
		header.SetInt32At(headerLeafOrderOffset, int32(leafOrder))
		header.SetInt32At(headerInternalOrderOffset, int32(internalOrder))
	})
}

func (pm *PageManager) updateHeader(fn func(*Page)) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.opts.ReadOnly {
		return ErrReadOnly
	}
	header, err := pm.pageLocked(HeaderPageID)
	if err != nil {
		return err
	}
	fn(header)
	return nil
}

// Allocate pops a zeroed page off the free list, growing the file by
// Options.GrowthPages when the list is empty.
func (pm *PageManager) Allocate() (*Page, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.opts.ReadOnly {
		return nil, ErrReadOnly
	}
	page, err := pm.freeList.pop()
	if err != nil {
		return nil, errors.Wrap(err, "allocate page")
	}
	return page, nil
}

// Free zeroes a page and pushes it onto the free list.
func (pm *PageManager) Free(id PageID) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.opts.ReadOnly {
		return ErrReadOnly
	}
	if err := pm.freeList.push(id); err != nil {
		return errors.Wrapf(err, "free page %d", id)
	}
	return nil
}

// FreePages returns the free list in chain order.
func (pm *PageManager) FreePages() ([]PageID, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.freeList.walk()
}

// BeginUpdate starts a batch of modifications. Until Flush or Discard every
// page handed out stays resident, so later reads see earlier writes.
func (pm *PageManager) BeginUpdate() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.inUpdate = true
	pm.pool.Hold()
}

// Flush writes every dirty page in page order, syncs the file and ends the
// current update. A write failure discards the remaining changes.
func (pm *PageManager) Flush() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.flushLocked()
}

func (pm *PageManager) flushLocked() error {
	if pm.closed {
		return ErrFileClosed
	}
	defer pm.endUpdateLocked()

	dirty := pm.pool.DirtyPages()
	for _, page := range dirty {
		if _, err := pm.file.WriteAt(page.data, page.id.Offset()); err != nil {
			pm.pool.DiscardDirty()
			return errors.Wrapf(err, "write page %d", page.id)
		}
	}
	if len(dirty) > 0 && pm.opts.SyncOnFlush {
		if err := pm.file.Sync(); err != nil {
			pm.pool.DiscardDirty()
			return errors.Wrap(err, "sync")
		}
	}
	pm.pool.MarkClean(dirty)

	pm.flushes++
	pm.pagesWritten += uint64(len(dirty))
	return nil
}

// Discard drops every modification made since the last flush.
func (pm *PageManager) Discard() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if dropped := pm.pool.DiscardDirty(); dropped > 0 {
		pm.log.Debug("update discarded", "pages", dropped)
	}
	pm.endUpdateLocked()
}

func (pm *PageManager) endUpdateLocked() {
	pm.inUpdate = false
	pm.pool.Release()
}

// InUpdate reports whether an update is in progress.
func (pm *PageManager) InUpdate() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.inUpdate
}

// Path returns the database file path.
func (pm *PageManager) Path() string {
	return pm.path
}

// IsReadOnly reports whether the file was opened read-only.
func (pm *PageManager) IsReadOnly() bool {
	return pm.opts.ReadOnly
}

// Close flushes pending pages and closes the file.
func (pm *PageManager) Close() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.closed {
		return nil
	}

	var flushErr error
	if !pm.opts.ReadOnly {
		flushErr = pm.flushLocked()
	}
	pm.pool.Clear()
	pm.closed = true

	if err := pm.file.Close(); err != nil {
		return errors.Wrap(err, "close")
	}
	pm.log.Debug("database file closed")
	return flushErr
}

// Stats contains statistics about the page file.
type Stats struct {
	Path         string
	PageSize     int
	TotalPages   int64
	FreePages    int
	NodePages    int64
	FileSize     int64
	Flushes      uint64
	PagesWritten uint64
	Cache        BufferPoolStats
}

// Stats returns current page file statistics.
func (pm *PageManager) Stats() (Stats, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	header, err := pm.pageLocked(HeaderPageID)
	if err != nil {
		return Stats{}, err
	}
	free, err := pm.freeList.walk()
	if err != nil {
		return Stats{}, err
	}
	info, err := pm.file.Stat()
	if err != nil {
		return Stats{}, errors.Wrap(err, "stat")
	}

	total := header.Int64At(headerNumPagesOffset)
	return Stats{
		Path:         pm.path,
		PageSize:     PageSize,
		TotalPages:   total,
		FreePages:    len(free),
		NodePages:    total - int64(len(free)) - 1,
		FileSize:     info.Size(),
		Flushes:      pm.flushes,
		PagesWritten: pm.pagesWritten,
		Cache:        pm.pool.Stats(),
	}, nil
}
