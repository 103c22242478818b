// Package config loads and validates the operational configuration
// shared by the lard-ingest, lard-query, and lard-seed binaries: a
// connection string (from the environment or CLI positionals), a
// stinfo connection string for the permit/metadata store, and an
// optional JSON file of operational overrides validated against an
// embedded JSON Schema before being merged over defaults.
package config

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/metno/lard/internal/errs"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*
var schemaFiles embed.FS

func loadSchemaFile(s string) (io.ReadCloser, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	return schemaFiles.Open(u.Path)
}

func init() {
	jsonschema.Loaders["embedFS"] = loadSchemaFile
}

// StreamConfig configures the XML Stream Consumer's message-bus
// connection (C7). StreamGroup is the durable-consumer analogue of the
// original's kafka_group.
type StreamConfig struct {
	Address     string `json:"address"`
	Subject     string `json:"subject"`
	StreamGroup string `json:"stream_group"`
}

// Config is the merged, validated configuration for a LARD binary.
type Config struct {
	// LardConnString is the primary data-store connection string
	// (env LARD_CONN_STRING, or built from positional host/user/dbname/password).
	LardConnString string `json:"-"`
	// StinfoConnString is the permit/metadata-store connection string
	// (env STINFO_CONN_STRING). Defaults to LardConnString when unset.
	StinfoConnString string `json:"-"`

	LogLevel string `json:"loglevel"`
	LogDate  bool   `json:"logdate"`

	PoolMaxConns int `json:"pool_max_conns"`
	PoolMinConns int `json:"pool_min_conns"`

	PermitRefreshIntervalMinutes int `json:"permit_refresh_interval_minutes"`

	IngestAddr string `json:"ingest_addr"`
	QueryAddr  string `json:"query_addr"`

	ParamConversionPath string `json:"param_conversion_path"`

	Stream StreamConfig `json:"stream"`
}

// Default returns the baseline configuration overridden by any file
// loaded via Load.
func Default() *Config {
	return &Config{
		LogLevel:                     "info",
		PoolMaxConns:                 10,
		PoolMinConns:                 2,
		PermitRefreshIntervalMinutes: 30,
		IngestAddr:                   ":3001",
		QueryAddr:                    ":3000",
		ParamConversionPath:          "params.csv",
	}
}

// Load builds a Config from environment variables and, if path is
// non-empty, a JSON file validated against the embedded schema and
// merged over the defaults. A missing connection string or an invalid
// config file is a Config-kind fatal error (§7).
func Load(path string) (*Config, error) {
	const op = "config.Load"

	cfg := Default()

	cfg.LardConnString = os.Getenv("LARD_CONN_STRING")
	cfg.StinfoConnString = os.Getenv("STINFO_CONN_STRING")
	if cfg.StinfoConnString == "" {
		cfg.StinfoConnString = cfg.LardConnString
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.E(op, errs.Config, fmt.Errorf("reading config file: %w", err))
		}

		if err := validate(raw); err != nil {
			return nil, errs.E(op, errs.Config, fmt.Errorf("validating config file: %w", err))
		}

		if err := json.Unmarshal(raw, cfg); err != nil {
			return nil, errs.E(op, errs.Config, fmt.Errorf("decoding config file: %w", err))
		}
	}

	if cfg.LardConnString == "" {
		return nil, errs.E(op, errs.Config, fmt.Errorf("LARD_CONN_STRING not set and no positional connection args given"))
	}

	return cfg, nil
}

// FromPositional builds a libpq-style connection string from the
// "host user dbname [password]" CLI convention documented in §6,
// mirroring original_source/fake_data_generator/src/main.rs's
// positional argument handling.
func FromPositional(host, user, dbname, password string) string {
	if password == "" {
		return fmt.Sprintf("host=%s user=%s dbname=%s sslmode=disable", host, user, dbname)
	}
	return fmt.Sprintf("host=%s user=%s dbname=%s password=%s sslmode=disable", host, user, dbname, password)
}

func validate(raw []byte) error {
	s, err := jsonschema.Compile("embedFS://schemas/config.schema.json")
	if err != nil {
		return err
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}

	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%#v", err)
	}
	return nil
}
