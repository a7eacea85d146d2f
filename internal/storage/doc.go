// Package storage provides the page store and free-page allocator for bpt.
//
// # File Layout
//
// A database is a single file of fixed 4096-byte pages. Page 0 is the
// header, holding the free list head, the root node reference and the page
// count. Every other page is either a tree node or a member of the free list.
// Page references are stored on disk as byte offsets, with 0 meaning none.
//
// # Page Manager
//
//	pm, err := storage.OpenPageManager("data.db", storage.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer pm.Close()
//
//	pm.BeginUpdate()
//	page, err := pm.Allocate()
//	if err != nil {
//	    pm.Discard()
//	    return err
//	}
//	page.SetLeaf(true)
//	return pm.Flush()
//
// # Updates
//
// Modifications happen in memory between BeginUpdate and Flush. Flush writes
// every dirty page in page order and fsyncs the file; Discard drops them,
// leaving the file as it was after the previous flush. Reads outside an
// update go through an LRU buffer pool.
//
// # Free List
//
// Freed pages are zeroed and pushed onto a singly linked list threaded
// through the first eight bytes of each free page. Allocation pops the head;
// when the list is empty the file grows by a batch of pages which are
// chained onto the list first.
package storage
