// Package config loads the settings of a dbrest deployment from a YAML
// file, an optional .env file and DBREST_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/syssam/dbrest"
	"github.com/syssam/dbrest/dialect"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DBREST_"

// Config is the complete configuration.
type Config struct {
	Database   Database   `yaml:"database"`
	Tables     []string   `yaml:"tables"`
	Mapping    []string   `yaml:"mapping"`
	Cache      Cache      `yaml:"cache"`
	Joins      Joins      `yaml:"joins"`
	Pagination Pagination `yaml:"pagination"`
	Debug      bool       `yaml:"debug"`
	Log        Log        `yaml:"log"`
	HTTP       HTTP       `yaml:"http"`
}

// Database describes the connection. A non-empty DSN is used as is,
// otherwise it is assembled from the remaining fields.
type Database struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Cache configures the schema cache.
type Cache struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
}

// Joins bounds relation joins.
type Joins struct {
	Depth    int  `yaml:"depth"`
	Tables   int  `yaml:"tables"`
	Records  int  `yaml:"records"`
	Parallel bool `yaml:"parallel"`
}

// Pagination configures page sizes.
type Pagination struct {
	Size    int `yaml:"size"`
	MaxSize int `yaml:"max_size"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTP configures the REST adapter.
type HTTP struct {
	Addr    string   `yaml:"addr"`
	Origins []string `yaml:"origins"`
}

// Default returns the configuration used for absent settings.
func Default() *Config {
	return &Config{
		Tables:     []string{"all"},
		Cache:      Cache{TTL: 10 * time.Second, Prefix: "dbrest:"},
		Joins:      Joins{Depth: 3, Tables: 10, Records: 1000},
		Pagination: Pagination{Size: 20, MaxSize: 1000},
		Log:        Log{Level: "info", Format: "text"},
		HTTP:       HTTP{Addr: ":8080"},
	}
}

// Load reads the configuration. An empty path skips the file. A .env file
// in the working directory is loaded first when present. Environment
// variables override file settings.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// applyEnv overrides settings from the environment.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = splitList(v)
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	str("DRIVER", &c.Database.Driver)
	str("DSN", &c.Database.DSN)
	str("HOST", &c.Database.Host)
	num("PORT", &c.Database.Port)
	str("NAME", &c.Database.Name)
	str("USER", &c.Database.User)
	str("PASSWORD", &c.Database.Password)
	str("SSLMODE", &c.Database.SSLMode)
	list("TABLES", &c.Tables)
	list("MAPPING", &c.Mapping)
	if v, ok := lookup(EnvPrefix + "CACHE_TTL"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %sCACHE_TTL: %w", EnvPrefix, err))
		} else {
			c.Cache.TTL = d
		}
	}
	str("CACHE_PREFIX", &c.Cache.Prefix)
	num("JOIN_DEPTH", &c.Joins.Depth)
	num("JOIN_TABLES", &c.Joins.Tables)
	num("JOIN_RECORDS", &c.Joins.Records)
	flag("JOIN_PARALLEL", &c.Joins.Parallel)
	num("PAGE_SIZE", &c.Pagination.Size)
	num("PAGE_MAX_SIZE", &c.Pagination.MaxSize)
	flag("DEBUG", &c.Debug)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("HTTP_ADDR", &c.HTTP.Addr)
	list("HTTP_ORIGINS", &c.HTTP.Origins)
	return dbrest.NewAggregateError(errs...)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Driver == "" {
		errs = append(errs, errors.New("config: database.driver is required"))
	} else if _, err := dialect.Name(c.Database.Driver); err != nil {
		errs = append(errs, fmt.Errorf("config: database.driver: %w", err))
	}
	if c.Database.DSN == "" && c.Database.Name == "" {
		errs = append(errs, errors.New("config: database.dsn or database.name is required"))
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: database.port %d out of range", c.Database.Port))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("config: cache.ttl must not be negative"))
	}
	if c.Joins.Depth < 0 || c.Joins.Tables < 0 || c.Joins.Records < 0 {
		errs = append(errs, errors.New("config: join limits must not be negative"))
	}
	if c.Pagination.Size < 1 {
		errs = append(errs, fmt.Errorf("config: pagination.size %d must be positive", c.Pagination.Size))
	}
	if c.Pagination.MaxSize < 0 {
		errs = append(errs, errors.New("config: pagination.max_size must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log.format %q", c.Log.Format))
	}
	return dbrest.NewAggregateError(errs...)
}

// Dialect returns the dialect of the configured driver.
func (c *Config) Dialect() (string, error) {
	return dialect.Name(c.Database.Driver)
}

// Source returns the data source name for sql.Open.
func (d Database) Source() (string, error) {
	if d.DSN != "" {
		return d.DSN, nil
	}
	name, err := dialect.Name(d.Driver)
	if err != nil {
		return "", err
	}
	switch name {
	case dialect.MySQL:
		cfg := mysql.NewConfig()
		cfg.User, cfg.Passwd, cfg.DBName = d.User, d.Password, d.Name
		cfg.Net, cfg.Addr = "tcp", d.addr(3306)
		return cfg.FormatDSN(), nil
	case dialect.Postgres:
		u := &url.URL{Scheme: "postgres", Host: d.addr(5432), Path: "/" + d.Name}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		mode := d.SSLMode
		if mode == "" {
			mode = "disable"
		}
		u.RawQuery = url.Values{"sslmode": {mode}}.Encode()
		return u.String(), nil
	case dialect.SQLServer:
		u := &url.URL{Scheme: "sqlserver", Host: d.addr(1433)}
		if d.User != "" {
			u.User = url.UserPassword(d.User, d.Password)
		}
		u.RawQuery = url.Values{"database": {d.Name}}.Encode()
		return u.String(), nil
	default:
		return d.Name, nil
	}
}

func (d Database) addr(port int) string {
	host := d.Host
	if host == "" {
		host = "localhost"
	}
	if d.Port != 0 {
		port = d.Port
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// SlogLevel parses the configured level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: log.level: %w", err)
	}
	return level, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
