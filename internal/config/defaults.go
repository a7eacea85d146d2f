package config

import (
	"github.com/spf13/viper"

	"github.com/KilimcininKorOglu/bpt/internal/storage"
)

// DefaultPath is the database file used when none is configured.
const DefaultPath = "bpt.db"

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:        DefaultPath,
			CacheSize:   storage.DefaultCacheSize,
			GrowthPages: storage.DefaultGrowthPages,
			Sync:        true,
			ReadOnly:    false,
		},
		Tree: TreeConfig{},
		Logging: LogConfig{
			Level:      "warn",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   false,
		},
	}
}

// setDefaults registers every default with v so environment variables can
// override keys that the config file leaves out.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.cacheSize", d.Storage.CacheSize)
	v.SetDefault("storage.growthPages", d.Storage.GrowthPages)
	v.SetDefault("storage.sync", d.Storage.Sync)
	v.SetDefault("storage.readOnly", d.Storage.ReadOnly)

	v.SetDefault("tree.leafOrder", d.Tree.LeafOrder)
	v.SetDefault("tree.internalOrder", d.Tree.InternalOrder)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.maxAgeDays", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}
