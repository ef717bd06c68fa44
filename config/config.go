// Package config loads client configuration from TOML or JSON files,
// with optional overrides from the environment.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr     string `json:"addr" toml:"addr"`
	User     string `json:"user" toml:"user"`
	Password string `json:"password" toml:"password"`
	DB       string `json:"db" toml:"db"`

	// Backend selects the connection implementation: "native" speaks
	// the wire protocol directly, "sql" goes through database/sql.
	Backend string `json:"backend" toml:"backend"`
	// DSN overrides the assembled data source name for the sql
	// backend.
	DSN string `json:"dsn" toml:"dsn"`

	LogLevel string `json:"log_level" toml:"log_level"`

	PoolSize      int `json:"pool_size" toml:"pool_size"`
	LoopQueueSize int `json:"loop_queue_size" toml:"loop_queue_size"`

	DialTimeoutSec  int `json:"dial_timeout_sec" toml:"dial_timeout_sec"`
	RetryTimeoutSec int `json:"retry_timeout_sec" toml:"retry_timeout_sec"`
}

func Default() *Config {
	return &Config{
		Addr:     "127.0.0.1:3306",
		User:     "root",
		Backend:  "native",
		LogLevel: "info",
		PoolSize: 100,
	}
}

func ParseConfigJsonData(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseConfigTomlData(data []byte) (*Config, error) {
	cfg := Default()
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ParseConfigFile(fileName string) (*Config, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	if strings.ToLower(filepath.Ext(fileName)) == ".toml" {
		return ParseConfigTomlData(data)
	}
	return ParseConfigJsonData(data)
}

// ApplyEnv overlays GOMYSQL_* environment variables, loading them from
// envFile first when it exists. Missing env files are not an error.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	set := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	set("GOMYSQL_ADDR", &c.Addr)
	set("GOMYSQL_USER", &c.User)
	set("GOMYSQL_PASSWORD", &c.Password)
	set("GOMYSQL_DB", &c.DB)
	set("GOMYSQL_BACKEND", &c.Backend)
	set("GOMYSQL_DSN", &c.DSN)
	set("GOMYSQL_LOG_LEVEL", &c.LogLevel)
	return nil
}

// AssembleDSN builds the go-sql-driver data source name for the sql
// backend when one is not given explicitly.
func (c *Config) AssembleDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	dsn := c.User
	if c.Password != "" {
		dsn += ":" + c.Password
	}
	return dsn + "@tcp(" + c.Addr + ")/" + c.DB
}
