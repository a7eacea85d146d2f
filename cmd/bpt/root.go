package main

import (
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/bpt/internal/loader"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bpt [datafile] [inputfile]",
		Short: "Disk-based B+ tree",
		Long: `bpt stores int64 keys with short string values in a single-file,
disk-resident B+ tree.

Run without a subcommand to start the interactive shell. A datafile argument
opens that file first; an inputfile argument bulk-loads its "i <key> <value>"
lines before the shell starts.`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInteractive(cmd, a, args)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ./bpt.yaml or $HOME/.bpt/bpt.yaml)")
	flags.String("db", "", "data file path (overrides storage.path)")
	flags.Bool("read-only", false, "open the data file read-only")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")

	cmd.AddCommand(
		newShellCmd(a),
		newInsertCmd(a),
		newFindCmd(a),
		newDeleteCmd(a),
		newLoadCmd(a),
		newPrintCmd(a),
		newLeavesCmd(a),
		newCheckCmd(a),
		newStatsCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// runInteractive is the classic invocation: open the data file if one is
// given, bulk-load the input file if one is given, then read shell commands.
func runInteractive(cmd *cobra.Command, a *app, args []string) error {
	printBanner(a.out, a.styles)

	sh := newShell(a)
	defer sh.close()

	path := ""
	switch {
	case len(args) > 0:
		path = args[0]
	case cmd.Flags().Changed("db"):
		path = a.cfg.Storage.Path
	}
	if path != "" {
		if err := sh.open(path); err != nil {
			a.styles.printErr(a.out, "Failure open db file: %v", err)
		}
	}

	if len(args) > 1 {
		if sh.db == nil {
			return engine.ErrDatabaseClosed
		}
		res, err := loader.LoadFile(cmd.Context(), args[1], sh.db, a.log)
		if err != nil {
			return err
		}
		printLoadResult(a.out, a.styles, res)
		if err := sh.printTree(); err != nil {
			return err
		}
	}

	return sh.run(cmd.Context(), a.in)
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [datafile]",
		Short: "Start the interactive shell",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sh := newShell(a)
			defer sh.close()

			path := a.cfg.Storage.Path
			if len(args) > 0 {
				path = args[0]
			}
			if err := sh.open(path); err != nil {
				return err
			}
			printShellHelp(a.out)
			return sh.run(cmd.Context(), a.in)
		},
	}
}
