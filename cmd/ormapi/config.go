package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/syssam/ormapi/compiler/load"
	"github.com/syssam/ormapi/compiler/naming"
	"github.com/syssam/ormapi/dialect"
	"github.com/syssam/ormapi/dialect/sql"
	"github.com/syssam/ormapi/dialect/sql/schema"
	ql "github.com/syssam/ormapi/querylanguage"
)

// Config is the configuration file of the CLI.
type Config struct {
	Driver  string        `yaml:"driver" toml:"driver"`
	DSN     string        `yaml:"dsn" toml:"dsn"`
	Schema  string        `yaml:"schema" toml:"schema"`
	Inspect InspectConfig `yaml:"inspect" toml:"inspect"`
	Naming  NamingConfig  `yaml:"naming" toml:"naming"`
	Pivots  []load.Pivot  `yaml:"pivots" toml:"pivots"`
	Gen     GenConfig     `yaml:"gen" toml:"gen"`
	Serve   ServeConfig   `yaml:"serve" toml:"serve"`
	Query   QueryConfig   `yaml:"query" toml:"query"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Log     LogConfig     `yaml:"log" toml:"log"`

	// path is the file the configuration was read from.
	path string
}

// InspectConfig selects where the schema is read from.
type InspectConfig struct {
	// Source is "live" or "ddl".
	Source  string   `yaml:"source" toml:"source"`
	DDLFile string   `yaml:"ddl_file" toml:"ddl_file"`
	Exclude []string `yaml:"exclude" toml:"exclude"`
}

// NamingConfig configures name splitting.
type NamingConfig struct {
	// Dictionary is a newline separated word list used to split
	// concatenated names such as "firstname".
	Dictionary string `yaml:"dictionary" toml:"dictionary"`
}

// GenConfig configures code generation.
type GenConfig struct {
	Target  string `yaml:"target" toml:"target"`
	Package string `yaml:"package" toml:"package"`
	OpenAPI bool   `yaml:"openapi" toml:"openapi"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr   string `yaml:"addr" toml:"addr"`
	Prefix string `yaml:"prefix" toml:"prefix"`
}

// QueryConfig configures the query engines.
type QueryConfig struct {
	MaxDepth       int `yaml:"max_depth" toml:"max_depth"`
	DefaultPerPage int `yaml:"default_per_page" toml:"default_per_page"`
	// CacheTTL enables the read cache for the given duration, such as "1m".
	CacheTTL string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// StorageConfig configures uploaded file storage.
type StorageConfig struct {
	Root      string `yaml:"root" toml:"root"`
	URLPrefix string `yaml:"url_prefix" toml:"url_prefix"`
	Disk      string `yaml:"disk" toml:"disk"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	// SlowQuery is the duration above which queries are logged, such as
	// "200ms". Empty disables slow query logging.
	SlowQuery string `yaml:"slow_query" toml:"slow_query"`
}

// drivers maps the configured driver to its dialect and database/sql
// driver name.
var drivers = map[string]struct{ dialect, name string }{
	"mysql":    {dialect.MySQL, "mysql"},
	"postgres": {dialect.Postgres, "postgres"},
	"pgx":      {dialect.Postgres, "pgx"},
	"sqlite":   {dialect.SQLite, "sqlite"},
}

// DefaultConfig returns the configuration used for unset values.
func DefaultConfig() *Config {
	return &Config{
		Driver:  "mysql",
		Inspect: InspectConfig{Source: "live"},
		Gen:     GenConfig{Target: "models", OpenAPI: true},
		Serve:   ServeConfig{Addr: ":8080", Prefix: "/api"},
		Query:   QueryConfig{DefaultPerPage: ql.DefaultPerPage},
		Storage: StorageConfig{Root: "storage", URLPrefix: "/storage"},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadConfig reads the configuration at path. The format is chosen by the
// file extension, ${VAR} references are expanded from the environment and
// a .env file next to the configuration is loaded first. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	c.path = path
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return c, c.validate()
	case err != nil:
		return nil, fmt.Errorf("config: %w", err)
	}
	data := os.ExpandEnv(string(b))
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal([]byte(data), c)
	case ".toml":
		_, err = toml.Decode(data, c)
	default:
		return nil, fmt.Errorf("config: unsupported format %q (use .yaml or .toml)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return c, c.validate()
}

// Write encodes c to path, in the format of its extension.
func (c *Config) Write(path string) error {
	var (
		b   []byte
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(c)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		b = []byte(sb.String())
	default:
		return fmt.Errorf("config: unsupported format %q (use .yaml or .toml)", ext)
	}
	if err != nil {
		return fmt.Errorf("config: encoding: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func (c *Config) validate() error {
	if _, ok := drivers[c.Driver]; !ok {
		return fmt.Errorf("config: unsupported driver %q (use mysql, postgres, pgx or sqlite)", c.Driver)
	}
	switch c.Inspect.Source {
	case "live":
	case "ddl":
		if c.Inspect.DDLFile == "" {
			return errors.New("config: inspect.ddl_file is required when inspect.source is ddl")
		}
	default:
		return fmt.Errorf("config: unsupported inspect.source %q (use live or ddl)", c.Inspect.Source)
	}
	if _, err := c.slowQuery(); err != nil {
		return err
	}
	if _, err := c.cacheTTL(); err != nil {
		return err
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

// Dir returns the directory of the configuration file. Relative paths of
// the configuration are resolved against it.
func (c *Config) Dir() string {
	return filepath.Dir(c.path)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// Dialect returns the SQL dialect of the configured driver.
func (c *Config) Dialect() string {
	return drivers[c.Driver].dialect
}

func (c *Config) slowQuery() (time.Duration, error) {
	if c.Log.SlowQuery == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Log.SlowQuery)
	if err != nil {
		return 0, fmt.Errorf("config: log.slow_query: %w", err)
	}
	return d, nil
}

func (c *Config) cacheTTL() (time.Duration, error) {
	if c.Query.CacheTTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Query.CacheTTL)
	if err != nil {
		return 0, fmt.Errorf("config: query.cache_ttl: %w", err)
	}
	return d, nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return l, nil
}

// Logger returns a text logger writing to stderr at the configured level.
func (c *Config) Logger() *slog.Logger {
	l, _ := c.level()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// Open opens the configured database. Queries above log.slow_query are
// logged.
func (c *Config) Open(logger *slog.Logger) (*sql.Driver, *sql.StatsDriver, error) {
	if c.DSN == "" {
		return nil, nil, errors.New("config: dsn is required")
	}
	d := drivers[c.Driver]
	drv, err := sql.OpenDriver(d.dialect, d.name, c.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s database: %w", c.Driver, err)
	}
	opts := []sql.StatsOption{sql.WithLogger(logger)}
	if slow, _ := c.slowQuery(); slow > 0 {
		opts = append(opts, sql.WithSlowThreshold(slow))
	}
	return drv, sql.NewStatsDriver(drv, opts...), nil
}

// Namer returns the namer of the configured dictionary.
func (c *Config) Namer() (*naming.Namer, error) {
	if c.Naming.Dictionary == "" {
		return naming.New(), nil
	}
	d, err := c.Dictionary()
	if err != nil {
		return nil, err
	}
	return naming.New(naming.WithSplitter(d)), nil
}

// Dictionary loads the configured word list.
func (c *Config) Dictionary() (*naming.DictionarySplitter, error) {
	f, err := os.Open(c.resolve(c.Naming.Dictionary))
	if err != nil {
		return nil, fmt.Errorf("config: naming.dictionary: %w", err)
	}
	defer f.Close()
	return naming.LoadDictionary(f)
}

// ReadSchema reads the schema snapshot. Live inspection uses drv, which may
// be nil for DDL inspection.
func (c *Config) ReadSchema(ctx context.Context, drv *sql.Driver) (*schema.Snapshot, error) {
	cfg := schema.Config{
		Dialect: c.Dialect(),
		Schema:  c.Schema,
		Exclude: c.Inspect.Exclude,
	}
	switch c.Inspect.Source {
	case "ddl":
		cfg.DDL = c.resolve(c.Inspect.DDLFile)
	default:
		if drv == nil {
			return nil, errors.New("live inspection requires a database connection")
		}
		cfg.DB = drv.DB()
	}
	in, err := schema.NewInspector(c.Inspect.Source, cfg)
	if err != nil {
		return nil, err
	}
	return in.Inspect(ctx)
}

// Load infers the models of snapshot s.
func (c *Config) Load(s *schema.Snapshot, logger *slog.Logger) (*load.Graph, error) {
	namer, err := c.Namer()
	if err != nil {
		return nil, err
	}
	return load.NewInferencer(s,
		load.WithNamer(namer),
		load.WithPivots(c.Pivots...),
		load.WithLogger(logger),
	).Load()
}
