// Package config loads the server configuration from a YAML file with
// environment overrides.
//
// .env files are read before the overrides are applied: ENV_FILE when set,
// otherwise .env.local and then .env. Variables already present in the
// environment are never replaced.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Notion NotionConfig `yaml:"notion"`
	Fetch  FetchConfig  `yaml:"fetch"`
	Cache  CacheConfig  `yaml:"cache"`
	Blog   BlogConfig   `yaml:"blog"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

type NotionConfig struct {
	Pages          []string `yaml:"pages"           env:"NOTION_PAGES"`
	APIURL         string   `yaml:"api_url"         env:"NOTION_API_URL"`
	Token          string   `yaml:"token"           env:"NOTION_TOKEN"`
	ScrapeFallback bool     `yaml:"scrape_fallback" env:"NOTION_SCRAPE_FALLBACK"`
	Selector       string   `yaml:"selector"        env:"NOTION_SELECTOR"`
}

type FetchConfig struct {
	Timeout     time.Duration `yaml:"timeout"     env:"FETCH_TIMEOUT"`
	Attempts    uint          `yaml:"attempts"    env:"FETCH_ATTEMPTS"`
	RetryDelay  time.Duration `yaml:"retry_delay" env:"FETCH_RETRY_DELAY"`
	Concurrency int           `yaml:"concurrency" env:"FETCH_CONCURRENCY"`
}

type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"     env:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db"       env:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl"            env:"CACHE_TTL"`
	Prefix        string        `yaml:"prefix"         env:"CACHE_PREFIX"`
}

type BlogConfig struct {
	Author string `yaml:"author" env:"BLOG_AUTHOR"`
}

type ServerConfig struct {
	HTTP     string `yaml:"http"     env:"SERVER_HTTP"`
	Endpoint string `yaml:"endpoint" env:"SERVER_ENDPOINT"`
}

type LogConfig struct {
	Level       string `yaml:"level"       env:"LOG_LEVEL"`
	Development bool   `yaml:"development" env:"LOG_DEVELOPMENT"`
}

var ErrNoPages = errors.New("notion.pages must list at least one page")

// Default returns the configuration used for everything a file leaves out.
func Default() *Config {
	return &Config{
		Notion: NotionConfig{
			APIURL:   "https://www.notion.so",
			Selector: "main",
		},
		Fetch: FetchConfig{
			Timeout:     15 * time.Second,
			Attempts:    3,
			RetryDelay:  500 * time.Millisecond,
			Concurrency: 4,
		},
		Cache: CacheConfig{
			TTL:    10 * time.Minute,
			Prefix: "notion-mcp:",
		},
		Server: ServerConfig{
			Endpoint: "/mcp",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; an empty path skips the file.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvToStruct(reflect.ValueOf(cfg).Elem())
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Notion.Pages) == 0 {
		errs = append(errs, ErrNoPages)
	}
	if c.Fetch.Attempts == 0 {
		errs = append(errs, errors.New("fetch.attempts must be positive"))
	}
	if c.Server.HTTP != "" && !strings.HasPrefix(c.Server.Endpoint, "/") {
		errs = append(errs, fmt.Errorf("server.endpoint %q must start with /", c.Server.Endpoint))
	}
	return errors.Join(errs...)
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func applyEnvToStruct(v reflect.Value) {
	t := v.Type()
	for i := range v.NumField() {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		if field.Kind() == reflect.Struct {
			applyEnvToStruct(field)
			continue
		}
		name := t.Field(i).Tag.Get("env")
		if name == "" {
			continue
		}
		if val, ok := os.LookupEnv(name); ok && val != "" {
			setFieldFromString(field, val)
		}
	}
}

func setFieldFromString(field reflect.Value, val string) {
	switch field.Kind() {
	case reflect.String:
		field.SetString(val)
	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			if d, err := time.ParseDuration(val); err == nil {
				field.SetInt(int64(d))
			}
		} else if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Uint:
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			field.SetUint(u)
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(strings.TrimSpace(val)); err == nil {
			field.SetBool(b)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			var parts []string
			for _, p := range strings.Split(val, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}
