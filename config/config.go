// Package config loads the server settings: built-in defaults, overlaid by a
// YAML file, command line flags and secrets from the environment.
package config

import (
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"

	AuthJWT  = "jwt"
	AuthMock = "mock"

	EnvJWTSecret = "FLOWCHAT_JWT_SECRET"
	EnvMysqlDSN  = "FLOWCHAT_MYSQL_DSN"
)

type Config struct {
	Addr           string `yaml:"addr"`
	PidFile        string `yaml:"pid_file"`
	PprofDir       string `yaml:"pprof_dir"`
	DisableMetrics bool   `yaml:"disable_metrics"`

	Store struct {
		Kind         string `yaml:"kind"`
		MysqlDSN     string `yaml:"mysql_dsn"`
		EnsureSchema bool   `yaml:"ensure_schema"`
	} `yaml:"store"`

	Auth struct {
		Mode       string `yaml:"mode"`
		JWTSecret  string `yaml:"jwt_secret"`
		CookieName string `yaml:"cookie_name"`
	} `yaml:"auth"`

	Chat struct {
		UnreadPolicy string `yaml:"unread_policy"`
		PreviewLen   int    `yaml:"preview_len"`
		SearchLimit  int    `yaml:"search_limit"`
	} `yaml:"chat"`

	WS struct {
		RateLimit       float64 `yaml:"rate_limit"`
		RateBurst       int     `yaml:"rate_burst"`
		MaxMessageBytes int64   `yaml:"max_message_bytes"`
		SendQueueSize   int     `yaml:"send_queue_size"`
	} `yaml:"ws"`

	Notify struct {
		KafkaBrokers  []string      `yaml:"kafka_brokers"`
		Topic         string        `yaml:"topic"`
		MaxBytes      int           `yaml:"max_bytes"`
		QueueSize     int           `yaml:"queue_size"`
		SpoolPath     string        `yaml:"spool_path"`
		RetryInterval time.Duration `yaml:"retry_interval"`
		SpoolTTL      time.Duration `yaml:"spool_ttl"`
	} `yaml:"notify"`

	Media struct {
		Bucket        string `yaml:"bucket"`
		Region        string `yaml:"region"`
		Prefix        string `yaml:"prefix"`
		BaseURL       string `yaml:"base_url"`
		MaxImageBytes int    `yaml:"max_image_bytes"`
	} `yaml:"media"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Default returns a config good for a local development run.
func Default() *Config {
	c := &Config{
		Addr:     "127.0.0.1:8000",
		PidFile:  "flowchat.pid",
		PprofDir: "pprof",
	}
	c.Store.Kind = StoreMySQL
	c.Store.MysqlDSN = "root:@tcp(127.0.0.1:3306)/flowchat?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci"
	c.Auth.Mode = AuthJWT
	c.Auth.CookieName = "jwt"
	c.Chat.UnreadPolicy = "offline"
	c.Chat.PreviewLen = 50
	c.Chat.SearchLimit = 30
	c.WS.RateLimit = 20
	c.WS.RateBurst = 40
	c.WS.MaxMessageBytes = 8 << 20
	c.WS.SendQueueSize = 256
	c.Notify.Topic = "flowchat-notifications"
	c.Notify.MaxBytes = 64 * 1024
	c.Notify.QueueSize = 1024
	c.Notify.SpoolPath = "notify-spool.db"
	c.Notify.RetryInterval = 30 * time.Second
	c.Notify.SpoolTTL = 24 * time.Hour
	c.Media.Prefix = "chat"
	c.Media.MaxImageBytes = 5 << 20
	return c
}

// Load overlays the YAML file at path onto the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return c, nil
}

// LoadEnv reads the .env file when present, then applies the secrets from the
// environment. Secrets never come from flags.
func (c *Config) LoadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv(EnvMysqlDSN); v != "" {
		c.Store.MysqlDSN = v
	}
	return nil
}

// SplitList splits a comma separated flag value.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("addr: %v", err)
	}
	if c.PidFile == "" {
		return fmt.Errorf("pid_file is required")
	}
	if c.PprofDir == "" {
		return fmt.Errorf("pprof_dir is required")
	}

	switch c.Store.Kind {
	case StoreMySQL:
		if c.Store.MysqlDSN == "" {
			return fmt.Errorf("store.mysql_dsn is required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("store.kind: expect %q or %q, got %q", StoreMySQL, StoreMemory, c.Store.Kind)
	}

	switch c.Auth.Mode {
	case AuthJWT:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required, set %s", EnvJWTSecret)
		}
	case AuthMock:
	default:
		return fmt.Errorf("auth.mode: expect %q or %q, got %q", AuthJWT, AuthMock, c.Auth.Mode)
	}

	if c.WS.RateLimit <= 0 || c.WS.RateBurst <= 0 {
		return fmt.Errorf("ws.rate_limit and ws.rate_burst should be positive")
	}
	if c.WS.MaxMessageBytes <= 0 {
		return fmt.Errorf("ws.max_message_bytes should be positive")
	}
	if c.WS.SendQueueSize <= 0 {
		return fmt.Errorf("ws.send_queue_size should be positive")
	}

	if len(c.Notify.KafkaBrokers) > 0 {
		if c.Notify.Topic == "" {
			return fmt.Errorf("notify.topic is required")
		}
		if c.Notify.MaxBytes <= 0 {
			return fmt.Errorf("notify.max_bytes should be positive")
		}
		if c.Notify.QueueSize <= 0 {
			return fmt.Errorf("notify.queue_size should be positive")
		}
		if c.Notify.SpoolPath != "" && (c.Notify.RetryInterval < time.Second || c.Notify.SpoolTTL < time.Minute) {
			return fmt.Errorf("notify: retry_interval should be >= 1s and spool_ttl >= 1m")
		}
	}

	if c.Media.Bucket != "" {
		if c.Media.Region == "" {
			return fmt.Errorf("media.region is required")
		}
		if c.Media.MaxImageBytes <= 0 {
			return fmt.Errorf("media.max_image_bytes should be positive")
		}
	}
	return nil
}
