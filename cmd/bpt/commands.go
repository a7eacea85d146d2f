package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/bpt/internal/loader"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

func keyArg(s string) (int64, error) {
	key, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Errorf("bad key %q", s)
	}
	return key, nil
}

func newInsertCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Insert a record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyArg(args[0])
			if err != nil {
				return err
			}
			value := strings.Join(args[1:], " ")
			return a.withDB(func(db *engine.DB) error {
				if err := db.Insert(key, value); err != nil {
					return errors.Wrapf(err, "insert %d", key)
				}
				a.styles.printOK(a.out, "Inserted key %d.", key)
				return nil
			})
		},
	}
}

func newFindCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "find <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyArg(args[0])
			if err != nil {
				return err
			}
			return a.withDB(func(db *engine.DB) error {
				value, err := db.Find(key)
				if err != nil {
					return errors.Wrapf(err, "find %d", key)
				}
				fmt.Fprintf(a.out, "Record -- key %d, value %s.\n", key, a.styles.value.Render(value))
				return nil
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := keyArg(args[0])
			if err != nil {
				return err
			}
			return a.withDB(func(db *engine.DB) error {
				if err := db.Delete(key); err != nil {
					return errors.Wrapf(err, "delete %d", key)
				}
				a.styles.printOK(a.out, "Deletion success.")
				return nil
			})
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <inputfile>",
		Short: `Bulk-load "key value" or "i key value" lines`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *engine.DB) error {
				res, err := loader.LoadFile(cmd.Context(), args[0], db, a.log)
				if err != nil {
					return err
				}
				printLoadResult(a.out, a.styles, res)
				return nil
			})
		},
	}
}

func newPrintCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the tree level by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *engine.DB) error {
				levels, err := db.Levels()
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, a.styles.renderTree(levels))
				return nil
			})
		},
	}
}

func newLeavesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "leaves",
		Short: "Print the keys of the leaves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *engine.DB) error {
				leaves, err := db.Leaves()
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, a.styles.renderLeaves(leaves))
				return nil
			})
		},
	}
}

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the tree and free list structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *engine.DB) error {
				if err := db.Verify(); err != nil {
					return err
				}
				a.styles.printOK(a.out, "OK: %s is consistent.", db.Path())
				return nil
			})
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print tree and file statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDB(func(db *engine.DB) error {
				stats, err := db.Stats()
				if err != nil {
					return err
				}
				fmt.Fprint(a.out, a.styles.renderStats(stats))
				return nil
			})
		},
	}
}
