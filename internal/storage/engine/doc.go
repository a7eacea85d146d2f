// Package engine provides the database handle used by the bpt command line.
//
// # Usage
//
//	db, err := engine.Open("data.db", engine.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Insert(1, "one"); err != nil {
//	    return err
//	}
//	value, err := db.Find(1)
//
// Insert and Delete return the btree status errors (ErrKeyExists,
// ErrKeyNotFound, ...) unchanged so callers can test them with errors.Is.
// Every open session gets a UUID that tags all of its log lines.
package engine
