// Package loader bulk-inserts "key value" records from a text stream.
package loader

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/KilimcininKorOglu/bpt/internal/logging"
	"github.com/KilimcininKorOglu/bpt/internal/storage/btree"
)

// ErrSyntax reports a malformed input line.
var ErrSyntax = errors.New("malformed input line")

// progressEvery is how many inserts pass between progress log lines.
const progressEvery = 10000

// Inserter is the write side of a database.
type Inserter interface {
	Insert(key int64, value string) error
}

// Result summarizes a load.
type Result struct {
	Records    int
	Inserted   int
	Duplicates int
}

type record struct {
	line  int
	key   int64
	value string
}

// ParseLine parses one input line. Accepted forms are "key value" and
// "i key value"; the value is the rest of the line with surrounding spaces
// trimmed. Blank lines and lines starting with '#' are skipped (ok=false).
func ParseLine(line string) (key int64, value string, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return 0, "", false, nil
	}

	fields := strings.Fields(line)
	if fields[0] == "i" {
		line = strings.TrimSpace(strings.TrimPrefix(line, "i"))
		fields = fields[1:]
	}
	if len(fields) < 2 {
		return 0, "", false, errors.Wrapf(ErrSyntax, "want \"key value\", got %q", line)
	}

	key, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, "", false, errors.Wrapf(ErrSyntax, "bad key %q", fields[0])
	}
	value = strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	return key, value, true, nil
}

// Load reads records from r and inserts them into db. Parsing and insertion
// run in separate goroutines; the first error or a cancelled ctx stops both.
// Keys already present are counted as duplicates and skipped.
func Load(ctx context.Context, r io.Reader, db Inserter, log logging.Logger) (Result, error) {
	if log == nil {
		log = logging.NewNop()
	}

	var res Result
	records := make(chan record, 256)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)

		scanner := bufio.NewScanner(r)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			key, value, ok, err := ParseLine(scanner.Text())
			if err != nil {
				return errors.Wrapf(err, "line %d", lineNo)
			}
			if !ok {
				continue
			}
			res.Records++

			select {
			case records <- record{line: lineNo, key: key, value: value}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return errors.Wrap(scanner.Err(), "read input")
	})

	g.Go(func() error {
		for rec := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := db.Insert(rec.key, rec.value)
			switch {
			case err == nil:
				res.Inserted++
				if res.Inserted%progressEvery == 0 {
					log.Info("load progress", "inserted", res.Inserted, "line", rec.line)
				}
			case errors.Is(err, btree.ErrKeyExists):
				res.Duplicates++
				log.Debug("duplicate key skipped", "key", rec.key, "line", rec.line)
			default:
				return errors.Wrapf(err, "line %d: insert %d", rec.line, rec.key)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("load failed", "error", err, "inserted", res.Inserted)
		return res, err
	}
	log.Info("load finished",
		"records", res.Records,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates)
	return res, nil
}

// LoadFile loads the records of the file at path.
func LoadFile(ctx context.Context, path string, db Inserter, log logging.Logger) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Load(ctx, f, db, log)
}
