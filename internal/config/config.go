// Package config holds the configuration for range lookups against the
// global index and for the stores they scan.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	lerrors "github.com/arkilian/rangelookup/internal/errors"
)

const envPrefix = "ARKILIAN_LOOKUP_"

// Config is the full configuration of the lookup tools.
type Config struct {
	// DataDir is the base directory for stores and cached snapshots
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Lookup  LookupConfig  `json:"lookup" yaml:"lookup"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// LookupConfig controls one bounded-range lookup.
type LookupConfig struct {
	// BeginDate and EndDate bound the shard days scanned, yyyyMMdd or yyyy-MM-dd
	BeginDate string `json:"begin_date" yaml:"begin_date"`
	EndDate   string `json:"end_date" yaml:"end_date"`

	IndexTable     string   `json:"index_table" yaml:"index_table"`
	Authorizations []string `json:"authorizations" yaml:"authorizations"`
	QueryThreads   int      `json:"query_threads" yaml:"query_threads"`

	// QueryID tags sessions and logs. Generated by Resolve when empty.
	QueryID string `json:"query_id" yaml:"query_id"`

	// CompositeFields maps a composite field to its ordered component fields
	CompositeFields map[string][]string `json:"composite_fields" yaml:"composite_fields"`

	// CompositeSeparators maps a composite field to its component separator
	CompositeSeparators map[string]string `json:"composite_separators" yaml:"composite_separators"`

	// DiscreteIndexTypes maps a component field to a discrete index type name
	DiscreteIndexTypes map[string]string `json:"discrete_index_types" yaml:"discrete_index_types"`

	// DatatypeFilter restricts matches to these datatypes. Empty accepts all.
	DatatypeFilter []string `json:"datatype_filter" yaml:"datatype_filter"`

	BaseIteratorPriority int `json:"base_iterator_priority" yaml:"base_iterator_priority"`

	// MaxUnfieldedExpansionThreshold caps distinct fields in a result
	MaxUnfieldedExpansionThreshold int `json:"max_unfielded_expansion_threshold" yaml:"max_unfielded_expansion_threshold"`

	// MaxValueExpansionThreshold caps distinct terms per field
	MaxValueExpansionThreshold int `json:"max_value_expansion_threshold" yaml:"max_value_expansion_threshold"`

	// MaxIndexScanTime is the default lookup deadline. Zero is unbounded.
	MaxIndexScanTime time.Duration `json:"max_index_scan_time" yaml:"max_index_scan_time"`

	MaxConcurrentSessions int `json:"max_concurrent_sessions" yaml:"max_concurrent_sessions"`
}

// StoreConfig selects the store holding the index.
type StoreConfig struct {
	// Type is memory or sqlite
	Type string `json:"type" yaml:"type"`

	// Path is the SQLite file
	Path string `json:"path" yaml:"path"`

	// SnapshotObject, when set, is fetched through Storage and opened read-only
	SnapshotObject string `json:"snapshot_object" yaml:"snapshot_object"`

	// CacheDir holds fetched snapshots
	CacheDir string `json:"cache_dir" yaml:"cache_dir"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is local or s3
	Type string   `json:"type" yaml:"type"`
	Path string   `json:"path" yaml:"path"`
	S3   S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is trace, debug, info, warn or error
	Level string `json:"level" yaml:"level"`
	// Format is text or json
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local use.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/arkilian-lookup",
		Lookup: LookupConfig{
			IndexTable:                     "shardIndex",
			QueryThreads:                   8,
			BaseIteratorPriority:           30,
			MaxUnfieldedExpansionThreshold: 500,
			MaxValueExpansionThreshold:     5000,
			MaxConcurrentSessions:          16,
		},
		Store: StoreConfig{
			Type: "sqlite",
		},
		Storage: StorageConfig{
			Type: "local",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Resolve fills paths derived from DataDir and generates a query ID.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/arkilian-lookup"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "index.db")
	}
	if c.Store.CacheDir == "" {
		c.Store.CacheDir = filepath.Join(c.DataDir, "snapshots")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}
	if c.Lookup.QueryID == "" {
		c.Lookup.QueryID = uuid.NewString()
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	l := c.Lookup
	if l.IndexTable == "" {
		return lerrors.NewConfigError("lookup.index_table is required")
	}
	if _, _, err := l.DateWindow(); err != nil {
		return err
	}
	if l.QueryThreads < 1 {
		return lerrors.NewConfigError(fmt.Sprintf("lookup.query_threads must be positive, got %d", l.QueryThreads))
	}
	if l.MaxIndexScanTime < 0 {
		return lerrors.NewConfigError("lookup.max_index_scan_time must not be negative")
	}
	for field, comps := range l.CompositeFields {
		if len(comps) == 0 {
			return lerrors.NewConfigError(fmt.Sprintf("lookup.composite_fields.%s has no components", field))
		}
	}

	switch c.Store.Type {
	case "memory", "sqlite":
	default:
		return lerrors.NewConfigError(fmt.Sprintf("invalid store type: %s (must be memory or sqlite)", c.Store.Type))
	}
	if c.Store.SnapshotObject != "" && c.Store.Type != "sqlite" {
		return lerrors.NewConfigError("store.snapshot_object requires store type sqlite")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return lerrors.NewConfigError(fmt.Sprintf("invalid storage type: %s (must be local or s3)", c.Storage.Type))
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return lerrors.NewConfigError("storage.s3.bucket is required when storage type is s3")
	}
	return nil
}

// DateWindow parses the begin and end dates.
func (l *LookupConfig) DateWindow() (time.Time, time.Time, error) {
	begin, err := parseDate("lookup.begin_date", l.BeginDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseDate("lookup.end_date", l.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(begin) {
		return time.Time{}, time.Time{}, lerrors.NewConfigError(
			fmt.Sprintf("lookup.end_date %s is before begin_date %s", l.EndDate, l.BeginDate))
	}
	return begin, end, nil
}

func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, lerrors.NewConfigError(name + " is required")
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, lerrors.NewConfigError(fmt.Sprintf("%s: invalid date %q", name, v))
}

// IsComposite reports whether field is registered as a composite field.
func (l *LookupConfig) IsComposite(field string) bool {
	_, ok := l.CompositeFields[field]
	return ok
}

// LoadFromFile loads configuration from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
	return cfg, nil
}

// LoadFromEnv overrides cfg from ARKILIAN_LOOKUP_* variables. Unparseable
// numbers and durations are ignored.
func LoadFromEnv(cfg *Config) {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v := os.Getenv(envPrefix + name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = splitList(v)
		}
	}

	str("DATA_DIR", &cfg.DataDir)

	str("BEGIN_DATE", &cfg.Lookup.BeginDate)
	str("END_DATE", &cfg.Lookup.EndDate)
	str("INDEX_TABLE", &cfg.Lookup.IndexTable)
	str("QUERY_ID", &cfg.Lookup.QueryID)
	list("AUTHORIZATIONS", &cfg.Lookup.Authorizations)
	list("DATATYPE_FILTER", &cfg.Lookup.DatatypeFilter)
	num("QUERY_THREADS", &cfg.Lookup.QueryThreads)
	num("BASE_ITERATOR_PRIORITY", &cfg.Lookup.BaseIteratorPriority)
	num("MAX_UNFIELDED_EXPANSION_THRESHOLD", &cfg.Lookup.MaxUnfieldedExpansionThreshold)
	num("MAX_VALUE_EXPANSION_THRESHOLD", &cfg.Lookup.MaxValueExpansionThreshold)
	num("MAX_CONCURRENT_SESSIONS", &cfg.Lookup.MaxConcurrentSessions)
	if v := os.Getenv(envPrefix + "MAX_INDEX_SCAN_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lookup.MaxIndexScanTime = d
		}
	}

	str("STORE_TYPE", &cfg.Store.Type)
	str("STORE_PATH", &cfg.Store.Path)
	str("STORE_SNAPSHOT_OBJECT", &cfg.Store.SnapshotObject)
	str("STORE_CACHE_DIR", &cfg.Store.CacheDir)

	str("STORAGE_TYPE", &cfg.Storage.Type)
	str("STORAGE_PATH", &cfg.Storage.Path)
	str("S3_BUCKET", &cfg.Storage.S3.Bucket)
	str("S3_REGION", &cfg.Storage.S3.Region)
	str("S3_ENDPOINT", &cfg.Storage.S3.Endpoint)
	if v := os.Getenv(envPrefix + "S3_USE_PATH_STYLE"); v != "" {
		cfg.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}

	str("LOG_LEVEL", &cfg.Log.Level)
	str("LOG_FORMAT", &cfg.Log.Format)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureDirectories creates the directories the configured stores write to.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.Store.CacheDir}
	if c.Store.Type == "sqlite" && c.Store.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Store.Path))
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
