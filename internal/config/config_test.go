package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENCRYPTION_PASSWORD", "pw")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, "AES-CTR", cfg.Encryption.Transformation)
	assert.Equal(t, 8192, cfg.Encryption.BufferSize)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(1<<30), cfg.Server.MaxObjectSize)
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yaml := `listen_addr: ":9090"
log_level: debug
storage:
  backend: file
  file:
    root: /var/lib/gateway
encryption:
  transformation: ChaCha20
  password: secret
  buffer_size: 16384
metadata:
  path: /var/lib/gateway/meta.db
audit:
  enabled: true
  max_events: 500
`
	require.NoError(t, os.WriteFile(configPath, []byte(yaml), 0644))

	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/gateway", cfg.Storage.File.Root)
	assert.Equal(t, "ChaCha20", cfg.Encryption.Transformation)
	assert.Equal(t, 16384, cfg.Encryption.BufferSize)
	assert.Equal(t, "/var/lib/gateway/meta.db", cfg.Metadata.Path)
	assert.True(t, cfg.Audit.Enabled)
	assert.Equal(t, 500, cfg.Audit.MaxEvents)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("ENCRYPTION_PASSWORD", "env-secret")
	t.Setenv("ENCRYPTION_TRANSFORMATION", "ChaCha20")
	t.Setenv("STORAGE_FILE_ROOT", "/tmp/ct")
	t.Setenv("SERVER_READ_TIMEOUT", "30s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "env-secret", cfg.Encryption.Password)
	assert.Equal(t, "ChaCha20", cfg.Encryption.Transformation)
	assert.Equal(t, "/tmp/ct", cfg.Storage.File.Root)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	t.Setenv("ENCRYPTION_PASSWORD", "pw")
	base := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "missing listen addr",
			mutate: func(c *Config) { c.ListenAddr = "" },
			errMsg: "listen_addr",
		},
		{
			name:   "unknown backend",
			mutate: func(c *Config) { c.Storage.Backend = "ftp" },
			errMsg: "storage.backend",
		},
		{
			name: "s3 without bucket",
			mutate: func(c *Config) {
				c.Storage.Backend = "s3"
				c.Storage.S3.AccessKey = "k"
				c.Storage.S3.SecretKey = "s"
			},
			errMsg: "storage.s3.bucket",
		},
		{
			name: "s3 without credentials",
			mutate: func(c *Config) {
				c.Storage.Backend = "s3"
				c.Storage.S3.Bucket = "b"
			},
			errMsg: "storage.s3.access_key",
		},
		{
			name:   "missing key material",
			mutate: func(c *Config) { c.Encryption.Password = "" },
			errMsg: "encryption.password",
		},
		{
			name:   "unknown transformation",
			mutate: func(c *Config) { c.Encryption.Transformation = "DES" },
			errMsg: "encryption.transformation",
		},
		{
			name:   "missing metadata path",
			mutate: func(c *Config) { c.Metadata.Path = "" },
			errMsg: "metadata.path",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.LogLevel = "verbose" },
			errMsg: "log_level",
		},
		{
			name:   "tls without cert",
			mutate: func(c *Config) { c.TLS.Enabled = true },
			errMsg: "tls.cert_file",
		},
		{
			name: "tracing bad exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "zipkin"
			},
			errMsg: "tracing.exporter",
		},
		{
			name: "jaeger without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			errMsg: "tracing.jaeger_endpoint",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
