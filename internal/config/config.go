package config

import (
	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

// Config holds the complete bpt configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Tree    TreeConfig    `mapstructure:"tree"`
	Logging LogConfig     `mapstructure:"logging"`
}

// StorageConfig holds page file configuration.
type StorageConfig struct {
	Path        string `mapstructure:"path" validate:"required"`
	CacheSize   int    `mapstructure:"cacheSize" validate:"gte=0"`
	GrowthPages int    `mapstructure:"growthPages" validate:"gte=1,lte=1024"`
	Sync        bool   `mapstructure:"sync"`
	ReadOnly    bool   `mapstructure:"readOnly"`
}

// TreeConfig holds B+ tree configuration. Zero orders defer to the file.
type TreeConfig struct {
	LeafOrder     int `mapstructure:"leafOrder" validate:"omitempty,gte=3,lte=32"`
	InternalOrder int `mapstructure:"internalOrder" validate:"omitempty,gte=3,lte=249"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	Output     string `mapstructure:"output" validate:"required"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `mapstructure:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig converts the logging section for logging.New.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		Format:     c.Logging.Format,
		Output:     c.Logging.Output,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
}

// EngineOptions converts the storage and tree sections for engine.Open.
func (c *Config) EngineOptions(log logging.Logger) engine.Options {
	opts := engine.DefaultOptions()
	opts.Logger = log
	opts.Storage = storage.DefaultOptions().
		WithCacheSize(c.Storage.CacheSize).
		WithGrowthPages(c.Storage.GrowthPages).
		WithSyncOnFlush(c.Storage.Sync).
		WithReadOnly(c.Storage.ReadOnly)
	opts.Tree = btree.Options{
		LeafOrder:     c.Tree.LeafOrder,
		InternalOrder: c.Tree.InternalOrder,
	}
	return opts
}
