package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that override configuration
// keys: BPT_STORAGE_PATH overrides storage.path.
const EnvPrefix = "BPT"

// NewViper returns a viper instance with bpt defaults and environment
// binding. A non-empty path names the config file to read.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bpt")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.bpt")
	}
	return v
}

// Load reads configuration from path, or from bpt.yaml in the working
// directory or $HOME/.bpt when path is empty, and validates it. A missing
// default config file is not an error.
func Load(path string) (*Config, error) {
	return FromViper(NewViper(path))
}

// FromViper reads the config file v points at, applies its defaults and
// overrides, and validates the result.
func FromViper(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
