package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	ListenAddr string           `yaml:"listen_addr" env:"LISTEN_ADDR"`
	LogLevel   string           `yaml:"log_level" env:"LOG_LEVEL"`
	Storage    StorageConfig    `yaml:"storage"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Metadata   MetadataConfig   `yaml:"metadata"`
	Server     ServerConfig     `yaml:"server"`
	Audit      AuditConfig      `yaml:"audit"`
	Tracing    TracingConfig    `yaml:"tracing"`
	TLS        TLSConfig        `yaml:"tls"`
}

// StorageConfig selects and configures the ciphertext backend.
type StorageConfig struct {
	Backend string          `yaml:"backend" env:"STORAGE_BACKEND"` // file, s3
	File    FileStoreConfig `yaml:"file"`
	S3      S3StoreConfig   `yaml:"s3"`
}

// FileStoreConfig holds local filesystem backend configuration.
type FileStoreConfig struct {
	Root string `yaml:"root" env:"STORAGE_FILE_ROOT"`
}

// S3StoreConfig holds S3 backend configuration.
type S3StoreConfig struct {
	Endpoint     string `yaml:"endpoint" env:"STORAGE_S3_ENDPOINT"`
	Region       string `yaml:"region" env:"STORAGE_S3_REGION"`
	Bucket       string `yaml:"bucket" env:"STORAGE_S3_BUCKET"`
	AccessKey    string `yaml:"access_key" env:"STORAGE_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"STORAGE_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"use_path_style" env:"STORAGE_S3_USE_PATH_STYLE"`
	UseSSL       bool   `yaml:"use_ssl" env:"STORAGE_S3_USE_SSL"`
}

// EncryptionConfig holds encryption-related configuration.
type EncryptionConfig struct {
	Transformation string `yaml:"transformation" env:"ENCRYPTION_TRANSFORMATION"` // AES-CTR, ChaCha20
	Password       string `yaml:"password" env:"ENCRYPTION_PASSWORD"`
	KeyFile        string `yaml:"key_file" env:"ENCRYPTION_KEY_FILE"`
	BufferSize     int    `yaml:"buffer_size" env:"ENCRYPTION_BUFFER_SIZE"` // Scratch buffer size in bytes
}

// MetadataConfig holds object metadata store configuration.
type MetadataConfig struct {
	Path string `yaml:"path" env:"METADATA_PATH"` // Path to the bbolt database file
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	ReadTimeout       time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT"`
	MaxHeaderBytes    int           `yaml:"max_header_bytes" env:"SERVER_MAX_HEADER_BYTES"`
	MaxObjectSize     int64         `yaml:"max_object_size" env:"SERVER_MAX_OBJECT_SIZE"` // Max upload size in bytes
}

// AuditConfig holds audit logging configuration.
type AuditConfig struct {
	Enabled   bool `yaml:"enabled" env:"AUDIT_ENABLED"`
	MaxEvents int  `yaml:"max_events" env:"AUDIT_MAX_EVENTS"` // Max events to keep in memory
}

// TLSConfig holds TLS configuration.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled" env:"TLS_ENABLED"`
	CertFile string `yaml:"cert_file" env:"TLS_CERT_FILE"`
	KeyFile  string `yaml:"key_file" env:"TLS_KEY_FILE"`
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	ServiceName    string  `yaml:"service_name" env:"TRACING_SERVICE_NAME"`
	ServiceVersion string  `yaml:"service_version" env:"TRACING_SERVICE_VERSION"`
	Exporter       string  `yaml:"exporter" env:"TRACING_EXPORTER"` // stdout, jaeger, otlp
	JaegerEndpoint string  `yaml:"jaeger_endpoint" env:"TRACING_JAEGER_ENDPOINT"`
	OtlpEndpoint   string  `yaml:"otlp_endpoint" env:"TRACING_OTLP_ENDPOINT"`
	SamplingRatio  float64 `yaml:"sampling_ratio" env:"TRACING_SAMPLING_RATIO"` // 0.0-1.0
}

// LoadConfig loads configuration from a file and environment variables.
func LoadConfig(path string) (*Config, error) {
	config := &Config{
		ListenAddr: ":8080",
		LogLevel:   "info",
		Storage: StorageConfig{
			Backend: "file",
			File: FileStoreConfig{
				Root: "./data",
			},
			S3: S3StoreConfig{
				Region: "us-east-1",
				UseSSL: true,
			},
		},
		Encryption: EncryptionConfig{
			Transformation: "AES-CTR",
			BufferSize:     8192,
		},
		Metadata: MetadataConfig{
			Path: "./metadata.db",
		},
		Server: ServerConfig{
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
			MaxObjectSize:     1 << 30, // 1GB
		},
		Audit: AuditConfig{
			Enabled:   false,
			MaxEvents: 10000,
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "crypto-range-gateway",
			ServiceVersion: "dev",
			Exporter:       "stdout",
			SamplingRatio:  1.0,
		},
	}

	// Load from file if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	loadFromEnv(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// loadFromEnv loads configuration values from environment variables.
func loadFromEnv(config *Config) {
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		config.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("STORAGE_FILE_ROOT"); v != "" {
		config.Storage.File.Root = v
	}
	if v := os.Getenv("STORAGE_S3_ENDPOINT"); v != "" {
		config.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("STORAGE_S3_REGION"); v != "" {
		config.Storage.S3.Region = v
	}
	if v := os.Getenv("STORAGE_S3_BUCKET"); v != "" {
		config.Storage.S3.Bucket = v
	}
	if v := os.Getenv("STORAGE_S3_ACCESS_KEY"); v != "" {
		config.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("STORAGE_S3_SECRET_KEY"); v != "" {
		config.Storage.S3.SecretKey = v
	}
	if v := os.Getenv("STORAGE_S3_USE_PATH_STYLE"); v != "" {
		config.Storage.S3.UsePathStyle = v == "true" || v == "1"
	}
	if v := os.Getenv("ENCRYPTION_TRANSFORMATION"); v != "" {
		config.Encryption.Transformation = v
	}
	if v := os.Getenv("ENCRYPTION_PASSWORD"); v != "" {
		config.Encryption.Password = v
	}
	if v := os.Getenv("ENCRYPTION_KEY_FILE"); v != "" {
		config.Encryption.KeyFile = v
	}
	if v := os.Getenv("ENCRYPTION_BUFFER_SIZE"); v != "" {
		var size int
		if _, err := fmt.Sscanf(v, "%d", &size); err == nil && size > 0 {
			config.Encryption.BufferSize = size
		}
	}
	if v := os.Getenv("METADATA_PATH"); v != "" {
		config.Metadata.Path = v
	}
	// Server timeouts from environment
	if v := os.Getenv("SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("SERVER_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.IdleTimeout = d
		}
	}
	if v := os.Getenv("SERVER_READ_HEADER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.ReadHeaderTimeout = d
		}
	}
	if v := os.Getenv("SERVER_MAX_HEADER_BYTES"); v != "" {
		var maxBytes int
		if _, err := fmt.Sscanf(v, "%d", &maxBytes); err == nil && maxBytes > 0 {
			config.Server.MaxHeaderBytes = maxBytes
		}
	}
	if v := os.Getenv("SERVER_MAX_OBJECT_SIZE"); v != "" {
		var maxSize int64
		if _, err := fmt.Sscanf(v, "%d", &maxSize); err == nil && maxSize > 0 {
			config.Server.MaxObjectSize = maxSize
		}
	}
	// Audit configuration
	if v := os.Getenv("AUDIT_ENABLED"); v != "" {
		config.Audit.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("AUDIT_MAX_EVENTS"); v != "" {
		var maxEvents int
		if _, err := fmt.Sscanf(v, "%d", &maxEvents); err == nil && maxEvents > 0 {
			config.Audit.MaxEvents = maxEvents
		}
	}
	// TLS configuration
	if v := os.Getenv("TLS_ENABLED"); v != "" {
		config.TLS.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TLS_CERT_FILE"); v != "" {
		config.TLS.CertFile = v
	}
	if v := os.Getenv("TLS_KEY_FILE"); v != "" {
		config.TLS.KeyFile = v
	}
	// Tracing configuration
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		config.Tracing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TRACING_SERVICE_NAME"); v != "" {
		config.Tracing.ServiceName = v
	}
	if v := os.Getenv("TRACING_SERVICE_VERSION"); v != "" {
		config.Tracing.ServiceVersion = v
	}
	if v := os.Getenv("TRACING_EXPORTER"); v != "" {
		config.Tracing.Exporter = v
	}
	if v := os.Getenv("TRACING_JAEGER_ENDPOINT"); v != "" {
		config.Tracing.JaegerEndpoint = v
	}
	if v := os.Getenv("TRACING_OTLP_ENDPOINT"); v != "" {
		config.Tracing.OtlpEndpoint = v
	}
	if v := os.Getenv("TRACING_SAMPLING_RATIO"); v != "" {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0.0 && ratio <= 1.0 {
			config.Tracing.SamplingRatio = ratio
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr is required")
	}

	switch c.Storage.Backend {
	case "file":
		if c.Storage.File.Root == "" {
			return fmt.Errorf("storage.file.root is required for the file backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 backend")
		}
		if c.Storage.S3.AccessKey == "" {
			return fmt.Errorf("storage.s3.access_key is required for the s3 backend")
		}
		if c.Storage.S3.SecretKey == "" {
			return fmt.Errorf("storage.s3.secret_key is required for the s3 backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend: %s (must be file or s3)", c.Storage.Backend)
	}

	if c.Encryption.Password == "" && c.Encryption.KeyFile == "" {
		return fmt.Errorf("either encryption.password or encryption.key_file is required")
	}

	validTransformations := map[string]bool{
		"AES-CTR":  true,
		"ChaCha20": true,
	}
	if alg := strings.TrimSpace(c.Encryption.Transformation); !validTransformations[alg] {
		return fmt.Errorf("invalid encryption.transformation: %s (must be AES-CTR or ChaCha20)", alg)
	}

	if c.Metadata.Path == "" {
		return fmt.Errorf("metadata.path is required")
	}

	if c.LogLevel != "" {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[c.LogLevel] {
			return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
		}
	}

	// Validate TLS configuration
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("tls.cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("tls.key_file is required when TLS is enabled")
		}
	}

	// Validate tracing configuration
	if c.Tracing.Enabled {
		if c.Tracing.ServiceName == "" {
			return fmt.Errorf("tracing.service_name is required when tracing is enabled")
		}
		validExporters := map[string]bool{
			"stdout": true,
			"jaeger": true,
			"otlp":   true,
		}
		if !validExporters[c.Tracing.Exporter] {
			return fmt.Errorf("invalid tracing.exporter: %s (must be stdout, jaeger, or otlp)", c.Tracing.Exporter)
		}
		if c.Tracing.SamplingRatio < 0.0 || c.Tracing.SamplingRatio > 1.0 {
			return fmt.Errorf("tracing.sampling_ratio must be between 0.0 and 1.0")
		}
		if c.Tracing.Exporter == "jaeger" && c.Tracing.JaegerEndpoint == "" {
			return fmt.Errorf("tracing.jaeger_endpoint is required when exporter is jaeger")
		}
		if c.Tracing.Exporter == "otlp" && c.Tracing.OtlpEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is otlp")
		}
	}

	return nil
}
