// Package config provides configuration loading for bpt.
//
// # Sources
//
// Settings come from, in increasing priority:
//
//   - Built-in defaults (DefaultConfig)
//   - A YAML, TOML or JSON config file
//   - Environment variables prefixed with BPT_
//   - Command-line flags bound by the bpt command
//
// Keys are case-insensitive. Nested keys map to environment variables by
// replacing dots with underscores:
//
//	BPT_STORAGE_PATH=/var/lib/bpt/data.db
//	BPT_STORAGE_CACHESIZE=1024
//	BPT_LOGGING_LEVEL=debug
//
// # Example File
//
//	storage:
//	  path: data.db
//	  cacheSize: 256
//	  growthPages: 5
//	  sync: true
//	  readOnly: false
//	tree:
//	  leafOrder: 32
//	  internalOrder: 249
//	logging:
//	  level: info
//	  format: json
//	  output: /var/log/bpt/bpt.log
//	  maxSizeMB: 10
//	  maxBackups: 3
//
// Tree orders of zero use the orders recorded in the database file.
//
// # Validation
//
// Load validates the decoded Config. Failures are reported as
// ValidationErrors naming each field by its configuration key:
//
//	cfg, err := config.Load("bpt.yaml")
//	var verrs config.ValidationErrors
//	if errors.As(err, &verrs) {
//	    for _, e := range verrs {
//	        fmt.Println(e.Field, e.Message)
//	    }
//	}
package config
