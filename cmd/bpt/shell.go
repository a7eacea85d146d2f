package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/KilimcininKorOglu/bpt/internal/loader"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
	"github.com/KilimcininKorOglu/bpt/internal/storage/engine"
)

const prompt = "> "

// shell reads one-letter commands and applies them to the open data file.
type shell struct {
	app *app
	db  *engine.DB
	out io.Writer
	st  styles
}

func newShell(a *app) *shell {
	return &shell{app: a, out: a.out, st: a.styles}
}

// open replaces the current data file with the one at path.
func (s *shell) open(path string) error {
	db, err := s.app.openDB(path)
	if err != nil {
		return err
	}
	s.close()
	s.db = db
	s.st.printOK(s.out, "Opened %s.", db.Path())
	return nil
}

func (s *shell) close() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.st.printErr(s.out, "Failure close db file: %v", err)
	}
	s.db = nil
}

// run executes commands from in until "q", end of input or cancellation.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, s.st.prompt.Render(prompt))
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if quit := s.exec(scanner.Text()); quit {
			return nil
		}
		fmt.Fprint(s.out, s.st.prompt.Render(prompt))
	}
	fmt.Fprintln(s.out)
	return errors.Wrap(scanner.Err(), "read commands")
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	op, args := fields[0], fields[1:]

	switch op {
	case "q":
		return true
	case "?":
		printShellHelp(s.out)
		return false
	case "o":
		if len(args) != 1 {
			s.st.printErr(s.out, "usage: o <datafile>")
			return false
		}
		if err := s.open(args[0]); err != nil {
			s.st.printErr(s.out, "Failure open db file: %v", err)
		}
		return false
	case "i", "f", "p", "d", "t", "l":
	default:
		printShellHelp(s.out)
		return false
	}

	if s.db == nil {
		fmt.Fprintln(s.out, "Please open data file first.")
		return false
	}

	var err error
	switch op {
	case "i":
		err = s.insert(line)
	case "f":
		err = s.find(args)
	case "p":
		err = s.path(args)
	case "d":
		err = s.delete(args)
	case "t":
		err = s.printTree()
	case "l":
		err = s.printLeaves()
	}
	if err != nil {
		s.st.printErr(s.out, "%v", err)
	}
	return false
}

func parseKey(op string, args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.Errorf("usage: %s <key>", op)
	}
	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.Errorf("bad key %q", args[0])
	}
	return key, nil
}

func (s *shell) insert(line string) error {
	key, value, ok, err := loader.ParseLine(line)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("usage: i <key> <value>")
	}

	switch err := s.db.Insert(key, value); {
	case errors.Is(err, btree.ErrKeyExists):
		fmt.Fprintf(s.out, "Duplicate key %d ignored.\n", key)
		return nil
	case err != nil:
		return err
	}
	return s.printTree()
}

func (s *shell) find(args []string) error {
	key, err := parseKey("f", args)
	if err != nil {
		return err
	}
	return s.printRecord(key)
}

func (s *shell) printRecord(key int64) error {
	value, err := s.db.Find(key)
	switch {
	case errors.Is(err, btree.ErrTreeEmpty):
		fmt.Fprintln(s.out, "Empty tree.")
	case errors.Is(err, btree.ErrKeyNotFound):
		fmt.Fprintf(s.out, "Record not found under key %d.\n", key)
	case err != nil:
		return err
	default:
		fmt.Fprintf(s.out, "Record -- key %d, value %s.\n", key, s.st.value.Render(value))
	}
	return nil
}

func (s *shell) path(args []string) error {
	key, err := parseKey("p", args)
	if err != nil {
		return err
	}

	trace, err := s.db.Trace(key)
	if errors.Is(err, btree.ErrTreeEmpty) {
		fmt.Fprintln(s.out, "Empty tree.")
		return nil
	}
	if err != nil {
		return err
	}

	views := make([]btree.NodeView, 0, len(trace))
	for _, id := range trace {
		v, err := s.db.Node(id)
		if err != nil {
			return err
		}
		views = append(views, v)
	}
	fmt.Fprint(s.out, s.st.renderPath(views))
	return s.printRecord(key)
}

func (s *shell) delete(args []string) error {
	key, err := parseKey("d", args)
	if err != nil {
		return err
	}

	switch err := s.db.Delete(key); {
	case errors.Is(err, btree.ErrKeyNotFound):
		fmt.Fprintf(s.out, "Failure deletion : value with key %d not found.\n", key)
	case err != nil:
		return err
	default:
		s.st.printOK(s.out, "Deletion success.")
	}
	return s.printTree()
}

func (s *shell) printTree() error {
	levels, err := s.db.Levels()
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.st.renderTree(levels))
	return nil
}

func (s *shell) printLeaves() error {
	leaves, err := s.db.Leaves()
	if err != nil {
		return err
	}
	fmt.Fprint(s.out, s.st.renderLeaves(leaves))
	return nil
}
