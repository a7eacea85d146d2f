// Package engine ties the page store and the B+ tree into one database handle.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
)

// Database errors.
var (
	ErrDatabaseClosed = errors.New("database is closed")
)

// Options configures a DB.
type Options struct {
	Storage storage.Options
	Tree    btree.Options
	Logger  logging.Logger
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		Storage: storage.DefaultOptions(),
		Tree:    btree.DefaultOptions(),
	}
}

// DB is an open database file.
type DB struct {
	pm        *storage.PageManager
	tree      *btree.Tree
	log       logging.Logger
	path      string
	sessionID string

	inserts atomic.Uint64
	deletes atomic.Uint64
	finds   atomic.Uint64

	closed bool
	mu     sync.RWMutex
}

// Open opens or creates the database file at path.
func Open(path string, opts Options) (*DB, error) {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	sessionID := logging.NewSessionID()
	log := opts.Logger.WithSessionID(sessionID)

	opts.Storage.Logger = log
	pm, err := storage.OpenPageManager(path, opts.Storage)
	if err != nil {
		return nil, err
	}

	opts.Tree.Logger = log
	tree, err := btree.Open(pm, opts.Tree)
	if err != nil {
		pm.Close()
		return nil, err
	}

	log.Info("database opened",
		"path", path,
		"leaf_order", tree.LeafOrder(),
		"internal_order", tree.InternalOrder(),
		"read_only", pm.IsReadOnly())

	return &DB{
		pm:        pm,
		tree:      tree,
		log:       log,
		path:      path,
		sessionID: sessionID,
	}, nil
}

// Close flushes and closes the database file.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	if err := db.pm.Close(); err != nil {
		db.log.Error("close failed", "error", err)
		return err
	}
	db.log.Info("database closed",
		"inserts", db.inserts.Load(),
		"deletes", db.deletes.Load(),
		"finds", db.finds.Load())
	return nil
}

// open acquires the read lock on a live database.
func (db *DB) open() (func(), error) {
	db.mu.RLock()
	if db.closed {
		db.mu.RUnlock()
		return nil, ErrDatabaseClosed
	}
	return db.mu.RUnlock, nil
}

// isStatus reports whether err is an expected outcome rather than a failure.
func isStatus(err error) bool {
	return errors.Is(err, btree.ErrKeyExists) ||
		errors.Is(err, btree.ErrKeyNotFound) ||
		errors.Is(err, btree.ErrTreeEmpty) ||
		errors.Is(err, btree.ErrValueTooLarge) ||
		errors.Is(err, btree.ErrInvalidValue)
}

func (db *DB) logMutation(op string, key int64, err error) {
	switch {
	case err == nil:
		db.log.Debug(op, "key", key)
	case isStatus(err):
		db.log.Debug(op+" rejected", "key", key, "reason", err.Error())
	default:
		db.log.Error(op+" failed", "key", key, "error", err)
	}
}

// Insert stores value under key.
func (db *DB) Insert(key int64, value string) error {
	release, err := db.open()
	if err != nil {
		return err
	}
	defer release()

	err = db.tree.Insert(key, value)
	db.logMutation("insert", key, err)
	if err == nil {
		db.inserts.Add(1)
	}
	return err
}

// Delete removes key.
func (db *DB) Delete(key int64) error {
	release, err := db.open()
	if err != nil {
		return err
	}
	defer release()

	err = db.tree.Delete(key)
	db.logMutation("delete", key, err)
	if err == nil {
		db.deletes.Add(1)
	}
	return err
}

// Find returns the value stored under key.
func (db *DB) Find(key int64) (string, error) {
	release, err := db.open()
	if err != nil {
		return "", err
	}
	defer release()

	db.finds.Add(1)
	return db.tree.Find(key)
}

// FindLeaf returns the leaf page that owns key.
func (db *DB) FindLeaf(key int64) (storage.PageID, error) {
	release, err := db.open()
	if err != nil {
		return storage.InvalidPageID, err
	}
	defer release()
	return db.tree.FindLeaf(key)
}

// Trace returns the pages visited from the root down to the leaf owning key.
func (db *DB) Trace(key int64) ([]storage.PageID, error) {
	release, err := db.open()
	if err != nil {
		return nil, err
	}
	defer release()
	return db.tree.Trace(key)
}

// Node returns a snapshot of one tree node.
func (db *DB) Node(id storage.PageID) (btree.NodeView, error) {
	release, err := db.open()
	if err != nil {
		return btree.NodeView{}, err
	}
	defer release()
	return db.tree.Node(id)
}

// Levels returns the tree in level order.
func (db *DB) Levels() ([][]btree.NodeView, error) {
	release, err := db.open()
	if err != nil {
		return nil, err
	}
	defer release()
	return db.tree.Levels()
}

// Leaves returns the leaves in chain order.
func (db *DB) Leaves() ([]btree.NodeView, error) {
	release, err := db.open()
	if err != nil {
		return nil, err
	}
	defer release()
	return db.tree.Leaves()
}

// Iterator returns an iterator over all entries in key order.
func (db *DB) Iterator() (*btree.Iterator, error) {
	release, err := db.open()
	if err != nil {
		return nil, err
	}
	defer release()
	return db.tree.Iterator(), nil
}

// Verify checks the tree and file invariants.
func (db *DB) Verify() error {
	release, err := db.open()
	if err != nil {
		return err
	}
	defer release()

	if err := db.tree.Verify(); err != nil {
		db.log.Error("verification failed", "error", err)
		return err
	}
	return nil
}

// Stats contains statistics about the database.
type Stats struct {
	Tree      btree.Stats
	SessionID string
	Inserts   uint64
	Deletes   uint64
	Finds     uint64
}

// Stats returns current database statistics.
func (db *DB) Stats() (Stats, error) {
	release, err := db.open()
	if err != nil {
		return Stats{}, err
	}
	defer release()

	ts, err := db.tree.Stats()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Tree:      ts,
		SessionID: db.sessionID,
		Inserts:   db.inserts.Load(),
		Deletes:   db.deletes.Load(),
		Finds:     db.finds.Load(),
	}, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// SessionID returns the identifier tagging this session's log lines.
func (db *DB) SessionID() string {
	return db.sessionID
}

// IsReadOnly reports whether the database was opened read-only.
func (db *DB) IsReadOnly() bool {
	return db.pm.IsReadOnly()
}
