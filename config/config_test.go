package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowchat.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(`
addr: 0.0.0.0:9000
store:
  kind: memory
auth:
  mode: mock
chat:
  unread_policy: unseen
notify:
  kafka_brokers: [k1:9092, k2:9092]
  retry_interval: 10s
`), 0600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", c.Addr)
	assert.Equal(t, StoreMemory, c.Store.Kind)
	assert.Equal(t, "unseen", c.Chat.UnreadPolicy)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Notify.KafkaBrokers)
	assert.Equal(t, 10*time.Second, c.Notify.RetryInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, 50, c.Chat.PreviewLen)
	assert.Equal(t, 24*time.Hour, c.Notify.SpoolTTL)
	assert.NoError(t, c.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadEnv(t *testing.T) {
	env := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, ioutil.WriteFile(env, []byte(EnvJWTSecret+"=from-dotenv\n"), 0600))
	os.Unsetenv(EnvJWTSecret)
	defer os.Unsetenv(EnvJWTSecret)

	c := Default()
	require.NoError(t, c.LoadEnv(env))
	assert.Equal(t, "from-dotenv", c.Auth.JWTSecret)
	assert.NoError(t, c.Validate())

	// A missing .env file is fine.
	require.NoError(t, c.LoadEnv(filepath.Join(t.TempDir(), ".env")))
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"no addr":          func(c *Config) { c.Addr = "" },
		"bad addr":         func(c *Config) { c.Addr = "localhost" },
		"bad store":        func(c *Config) { c.Store.Kind = "redis" },
		"no dsn":           func(c *Config) { c.Store.MysqlDSN = "" },
		"no secret":        func(c *Config) { c.Auth.JWTSecret = "" },
		"bad auth":         func(c *Config) { c.Auth.Mode = "basic" },
		"no rate":          func(c *Config) { c.WS.RateLimit = 0 },
		"no topic":         func(c *Config) { c.Notify.Topic = "" },
		"short retry":      func(c *Config) { c.Notify.RetryInterval = time.Millisecond },
		"no queue":         func(c *Config) { c.Notify.QueueSize = 0 },
		"bucket no region": func(c *Config) { c.Media.Bucket = "b" },
	}
	for name, fn := range cases {
		c := Default()
		c.Auth.JWTSecret = "s"
		c.Notify.KafkaBrokers = []string{"k:9092"}
		assert.NoError(t, c.Validate(), name)
		fn(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b "))
	assert.Nil(t, SplitList(""))
}
