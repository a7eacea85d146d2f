package storage

import "github.com/KilimcininKorOglu/bpt/internal/logging"

// DefaultGrowthPages is the number of pages appended when the free list runs dry.
const DefaultGrowthPages = 5

// Options configures the PageManager.
type Options struct {
	// CacheSize is the number of clean pages kept in memory between updates.
	// Default: 256 pages.
	CacheSize int

	// GrowthPages is the number of pages appended to the file when an
	// allocation finds the free list empty.
	// Default: 5 pages.
	GrowthPages int

	// SyncOnFlush forces fsync at the end of every flush.
	// Default: true.
	SyncOnFlush bool

	// ReadOnly opens the database in read-only mode.
	// Default: false.
	ReadOnly bool

	// CreateIfNew creates and initializes the file if it doesn't exist.
	// Default: true.
	CreateIfNew bool

	// Logger receives storage events. Nil means no logging.
	Logger logging.Logger
}

// DefaultOptions returns the default PageManager options.
func DefaultOptions() Options {
	return Options{
		CacheSize:   DefaultCacheSize,
		GrowthPages: DefaultGrowthPages,
		SyncOnFlush: true,
		ReadOnly:    false,
		CreateIfNew: true,
	}
}

// WithCacheSize sets the buffer pool size.
func (o Options) WithCacheSize(pages int) Options {
	o.CacheSize = pages
	return o
}

// WithGrowthPages sets the number of pages added per file extension.
func (o Options) WithGrowthPages(pages int) Options {
	o.GrowthPages = pages
	return o
}

// WithSyncOnFlush enables or disables fsync after each flush.
func (o Options) WithSyncOnFlush(sync bool) Options {
	o.SyncOnFlush = sync
	return o
}

// WithReadOnly sets read-only mode.
func (o Options) WithReadOnly(readOnly bool) Options {
	o.ReadOnly = readOnly
	return o
}

// WithLogger sets the logger.
func (o Options) WithLogger(l logging.Logger) Options {
	o.Logger = l
	return o
}

// normalize fills zero values with defaults.
func (o Options) normalize() Options {
	if o.CacheSize < 0 {
		o.CacheSize = 0
	}
	if o.GrowthPages <= 0 {
		o.GrowthPages = DefaultGrowthPages
	}
	if o.Logger == nil {
		o.Logger = logging.NewNop()
	}
	return o
}
