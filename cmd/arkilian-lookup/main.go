// Package main implements the arkilian-lookup binary.
// It expands one bounded literal range against the global index and prints
// the terms found as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arkilian/rangelookup/internal/app"
	"github.com/arkilian/rangelookup/internal/config"
	lerrors "github.com/arkilian/rangelookup/internal/errors"
	"github.com/arkilian/rangelookup/internal/logging"
	"github.com/arkilian/rangelookup/internal/lookup"
	"github.com/arkilian/rangelookup/pkg/types"
)

// Flags holds the command line.
type Flags struct {
	ConfigPath     string
	Field          string
	Lower          string
	Upper          string
	LowerInclusive bool
	UpperInclusive bool
	MaxLookup      time.Duration
	ShowStats      bool
}

// output is what the binary prints.
type output struct {
	Range  string                `json:"range"`
	Result *lookup.IndexLookupMap `json:"result"`
	Stats  any                    `json:"stats,omitempty"`
}

func main() {
	flags := parseFlags()

	cfg, err := loadConfig(flags.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags, logger, os.Stdout); err != nil {
		logger.Error("lookup failed", "error", err, "code", lerrors.GetCode(err))
		os.Exit(1)
	}
}

func parseFlags() Flags {
	f := Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "Path to YAML or JSON configuration file")
	flag.StringVar(&f.Field, "field", "", "Field whose terms are looked up")
	flag.StringVar(&f.Lower, "lower", "", "Lower bound of the range")
	flag.StringVar(&f.Upper, "upper", "", "Upper bound of the range")
	flag.BoolVar(&f.LowerInclusive, "lower-inclusive", true, "Include the lower bound")
	flag.BoolVar(&f.UpperInclusive, "upper-inclusive", false, "Include the upper bound")
	flag.DurationVar(&f.MaxLookup, "max-lookup", -1, "Lookup deadline; 0 is unbounded, negative uses lookup.max_index_scan_time")
	flag.BoolVar(&f.ShowStats, "stats", false, "Print per-field lookup statistics")

	flag.Parse()

	if f.Field == "" {
		log.Fatalf("-field is required")
	}
	return f
}

func loadConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = config.LoadFromFile(path); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config, flags Flags, logger *logging.Logger, w io.Writer) error {
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	if err := a.Open(ctx, app.ModeRead); err != nil {
		return err
	}
	defer a.Close()

	maxLookup := flags.MaxLookup
	if maxLookup < 0 {
		maxLookup = cfg.Lookup.MaxIndexScanTime
	}

	rng := types.NewLiteralRange(flags.Field, flags.Lower, flags.LowerInclusive, flags.Upper, flags.UpperInclusive)
	m, err := lookup.NewBoundedRangeLookup(rng, lookup.WithLogger(logger), lookup.WithStats(a.Stats())).
		Lookup(ctx, &cfg.Lookup, a.Factory(), maxLookup)
	if err != nil {
		return err
	}

	out := output{Range: rng.String(), Result: m}
	if flags.ShowStats {
		out.Stats = a.Stats().GetTopFields(10)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
