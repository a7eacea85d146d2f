package storage

// freeList allocates and releases pages through the linked list rooted at
// the header. All methods run with the PageManager lock held.
type freeList struct {
	pm     *PageManager
	growth int
}

func newFreeList(pm *PageManager, growth int) *freeList {
	return &freeList{pm: pm, growth: growth}
}

// pop removes the head of the free list, growing the file first if the list
// is empty. The returned page is zeroed.
func (fl *freeList) pop() (*Page, error) {
	header, err := fl.pm.pageLocked(HeaderPageID)
	if err != nil {
		return nil, err
	}
	if header.PageIDAt(headerFreeListOffset) == InvalidPageID {
		if err := fl.grow(header); err != nil {
			return nil, err
		}
	}

	head := header.PageIDAt(headerFreeListOffset)
	page, err := fl.pm.pageLocked(head)
	if err != nil {
		return nil, err
	}
	header.SetPageIDAt(headerFreeListOffset, page.NextFree())
	page.Reset()
	return page, nil
}

// push zeroes a page and makes it the new head of the free list.
func (fl *freeList) push(id PageID) error {
	if id == HeaderPageID {
		return ErrCannotFreeHeader
	}
	header, err := fl.pm.pageLocked(HeaderPageID)
	if err != nil {
		return err
	}
	page, err := fl.pm.pageLocked(id)
	if err != nil {
		return err
	}
	page.Reset()
	page.SetNextFree(header.PageIDAt(headerFreeListOffset))
	header.SetPageIDAt(headerFreeListOffset, id)
	return nil
}

// grow appends fl.growth pages to the file and chains them in ascending
// order as the new free list. The pages reach disk on the next flush.
func (fl *freeList) grow(header *Page) error {
	numPages := header.Int64At(headerNumPagesOffset)
	first := PageID(numPages)

	for i := 0; i < fl.growth; i++ {
		id := first + PageID(i)
		next := id + 1
		if i == fl.growth-1 {
			next = InvalidPageID
		}
		page := newPage(id, make([]byte, PageSize))
		page.SetNextFree(next)
		fl.pm.pool.Put(page)
	}

	header.SetInt64At(headerNumPagesOffset, numPages+int64(fl.growth))
	header.SetPageIDAt(headerFreeListOffset, first)

	fl.pm.log.Debug("file grown",
		"first_page", uint64(first),
		"pages", fl.growth,
		"num_pages", numPages+int64(fl.growth))
	return nil
}

// walk returns the free list in chain order. A chain that revisits a page
// or runs longer than the file fails with ErrFreeListCycle.
func (fl *freeList) walk() ([]PageID, error) {
	header, err := fl.pm.pageLocked(HeaderPageID)
	if err != nil {
		return nil, err
	}
	numPages := header.Int64At(headerNumPagesOffset)

	var ids []PageID
	seen := make(map[PageID]struct{})
	for id := header.PageIDAt(headerFreeListOffset); id != InvalidPageID; {
		if _, dup := seen[id]; dup || int64(len(ids)) >= numPages {
			return ids, ErrFreeListCycle
		}
		seen[id] = struct{}{}
		ids = append(ids, id)

		page, err := fl.pm.pageLocked(id)
		if err != nil {
			return ids, err
		}
		id = page.NextFree()
	}
	return ids, nil
}
