// Package btree implements the disk-resident B+ tree of bpt.
//
// # Overview
//
// Keys are int64 and values are strings of at most 120 bytes. Each node is a
// 4KB page of a storage.PageManager:
//
//   - Leaf nodes: up to LeafOrder-1 key/value slots and a right sibling link
//   - Internal nodes: up to InternalOrder-1 keys interleaved with children
//
// Inserts split full nodes and push separators upward, growing a new root
// when the old one splits. Deletes merge an underflowing node into a sibling
// when both fit in one page and otherwise borrow a single entry; merges
// cascade upward and an emptied root collapses.
//
// # Usage
//
//	tree, err := btree.Open(pageManager, btree.DefaultOptions())
//
//	err = tree.Insert(42, "answer")
//	value, err := tree.Find(42)
//	err = tree.Delete(42)
//
//	it := tree.Iterator()
//	for key, value, ok := it.Next(); ok; key, value, ok = it.Next() {
//	    fmt.Println(key, value)
//	}
//
// # Durability
//
// Every Insert and Delete is one page manager update: pages change in memory
// and are flushed together when the operation completes. Rejected operations
// (duplicate key, missing key, invalid value) never touch the file.
package btree
