package main

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/KilimcininKorOglu/bpt/internal/config"
	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

// app carries the state shared by every command of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	styles styles

	configPath string
	v          *viper.Viper
	cfg        *config.Config
	log        logging.Logger
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		in:     in,
		out:    out,
		errOut: errOut,
		styles: newStyles(out),
		log:    logging.NewNop(),
	}
}

// setup loads the configuration, letting flags set on the command line
// override the file and environment.
func (a *app) setup(cmd *cobra.Command) error {
	a.v = config.NewViper(a.configPath)

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"storage.path":     "db",
		"storage.readOnly": "read-only",
		"logging.level":    "log-level",
		"logging.format":   "log-format",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return err
		}
	}

	cfg, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.New(cfg.LoggingConfig()).WithFields("component", "cli")
	a.log.Debug("configuration loaded", "config_file", a.v.ConfigFileUsed(), "db", cfg.Storage.Path)
	return nil
}

// openDB opens the data file at path, or the configured one when path is
// empty.
func (a *app) openDB(path string) (*engine.DB, error) {
	if path == "" {
		path = a.cfg.Storage.Path
	}
	return engine.Open(path, a.cfg.EngineOptions(a.log))
}

// withDB runs fn against the configured data file and closes it afterwards.
func (a *app) withDB(fn func(*engine.DB) error) (err error) {
	db, err := a.openDB("")
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); err == nil {
			err = closeErr
		}
	}()
	return fn(db)
}

func (a *app) close() {
	// Syncing a terminal returns EINVAL on some platforms.
	_ = a.log.Sync()
}
