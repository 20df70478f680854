// Package main implements the arkilian-index-load binary.
// It reads JSON-lines index entries and writes them into the global index,
// optionally publishing the result as a snapshot.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"github.com/arkilian/rangelookup/internal/app"
	"github.com/arkilian/rangelookup/internal/config"
	"github.com/arkilian/rangelookup/internal/index"
	"github.com/arkilian/rangelookup/internal/kv"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/store"
)

// Flags holds the command line.
type Flags struct {
	ConfigPath string
	InputPath  string
	Shards     int
	MaxUIDs    int
	BatchSize  int
	Publish    bool
}

var errBadLine = errors.New("invalid index entry line")

func main() {
	flags := parseFlags()

	cfg := config.DefaultConfig()
	if flags.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(flags.ConfigPath); err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	config.LoadFromEnv(cfg)

	// The lookup window does not apply to loading.
	today := kv.FormatDay(time.Now())
	if cfg.Lookup.BeginDate == "" {
		cfg.Lookup.BeginDate = today
	}
	if cfg.Lookup.EndDate == "" {
		cfg.Lookup.EndDate = today
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in := io.Reader(os.Stdin)
	if flags.InputPath != "" && flags.InputPath != "-" {
		f, err := os.Open(flags.InputPath)
		if err != nil {
			log.Fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		in = f
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	if err := a.Open(ctx, app.ModeWrite); err != nil {
		log.Fatalf("Failed to open index store: %v", err)
	}
	defer a.Close()

	dest, err := a.Writer()
	if err != nil {
		log.Fatalf("Failed to open index store: %v", err)
	}

	started := time.Now()
	lines, cells, err := load(ctx, in, dest, cfg.Lookup.IndexTable, flags, logger)
	if err != nil {
		logger.Error("load failed", "error", err, "lines", lines)
		os.Exit(1)
	}
	logger.Info("index loaded", "table", cfg.Lookup.IndexTable, "lines", lines, "cells", cells,
		"duration", time.Since(started))

	if flags.Publish {
		if err := a.Publish(ctx); err != nil {
			logger.Error("publish failed", "error", err)
			os.Exit(1)
		}
	}
}

func parseFlags() Flags {
	f := Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "Path to YAML or JSON configuration file")
	flag.StringVar(&f.InputPath, "input", "-", "JSON-lines file of index entries, - for stdin")
	flag.IntVar(&f.Shards, "shards", index.DefaultShards, "Shards per day")
	flag.IntVar(&f.MaxUIDs, "max-uids", index.DefaultMaxUIDs, "UIDs kept per index cell before only counting")
	flag.IntVar(&f.BatchSize, "batch-size", 10000, "Index cells buffered before each write")
	flag.BoolVar(&f.Publish, "publish", false, "Upload the store as store.snapshot_object when done")

	flag.Parse()
	return f
}

// load reads entries from r and writes them to table. It returns the number
// of lines read and cells written.
func load(ctx context.Context, r io.Reader, dest store.Writer, table string, flags Flags, logger *logging.Logger) (int, int, error) {
	w := index.NewWriter(dest, table, flags.Shards, flags.MaxUIDs)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	lines, written := 0, 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return lines, written, err
		}
		lines++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		e, err := parseEntry(line)
		if err != nil {
			return lines, written, fmt.Errorf("line %d: %w", lines, err)
		}
		if err := w.Add(e); err != nil {
			return lines, written, fmt.Errorf("line %d: %w", lines, err)
		}

		if flags.BatchSize > 0 && w.Pending() >= flags.BatchSize {
			n, err := w.Flush(ctx)
			if err != nil {
				return lines, written, err
			}
			written += n
			logger.Debug("index-load: batch written", "cells", n, "lines", lines)
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, written, fmt.Errorf("failed to read input: %w", err)
	}

	n, err := w.Flush(ctx)
	if err != nil {
		return lines, written, err
	}
	return lines, written + n, nil
}

// parseEntry decodes one line:
//
//	{"field": "NAME", "value": "alice", "date": "20240115", "uid": "doc-1", "datatype": "csv", "visibility": "PUBLIC"}
//
// date also accepts yyyy-MM-dd and RFC 3339.
func parseEntry(line []byte) (index.Entry, error) {
	if !gjson.ValidBytes(line) {
		return index.Entry{}, fmt.Errorf("%w: not JSON", errBadLine)
	}
	res := gjson.GetManyBytes(line, "field", "value", "date", "uid", "datatype", "visibility")
	if !res[1].Exists() {
		return index.Entry{}, fmt.Errorf("%w: missing value", errBadLine)
	}

	date, err := parseDate(res[2].String())
	if err != nil {
		return index.Entry{}, err
	}
	return index.Entry{
		Field:      res[0].String(),
		Value:      res[1].String(),
		Date:       date,
		UID:        res[3].String(),
		Datatype:   res[4].String(),
		Visibility: res[5].String(),
	}, nil
}

func parseDate(v string) (time.Time, error) {
	for _, layout := range []string{"20060102", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", errBadLine, v)
}
