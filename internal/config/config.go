package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for swiftgate
type Config struct {
	// Server configuration
	Listen    string `mapstructure:"listen"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // json, text

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`

	// Storage backend configuration
	Storage StorageConfig `mapstructure:"storage"`

	// S3 protocol configuration
	S3 S3Config `mapstructure:"s3"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig defines which backend objects are deleted from
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // swift, s3, memory

	Swift SwiftConfig    `mapstructure:"swift"`
	S3    UpstreamConfig `mapstructure:"s3"`
}

// SwiftConfig configures the path-addressed Swift backend
type SwiftConfig struct {
	Endpoint       string        `mapstructure:"endpoint"` // e.g. http://127.0.0.1:8080
	AuthToken      string        `mapstructure:"auth_token"`
	ResellerPrefix string        `mapstructure:"reseller_prefix"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// UpstreamConfig configures an upstream S3-compatible store
type UpstreamConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	MaxAttempts  int    `mapstructure:"max_attempts"` // 0 keeps the SDK default retryer
}

// S3Config defines limits and behaviour of the S3 front end
type S3Config struct {
	MaxMultiDeleteObjects  int           `mapstructure:"max_multi_delete_objects"`
	MultiDeleteConcurrency int           `mapstructure:"multi_delete_concurrency"`
	MaxMultiDeleteBodySize int64         `mapstructure:"max_multi_delete_body_size"`
	MultiDeleteTimeout     time.Duration `mapstructure:"multi_delete_timeout"`

	// S3ACL enables bucket ACL evaluation in the gateway itself
	S3ACL        bool          `mapstructure:"s3_acl"`
	ACLCacheSize int           `mapstructure:"acl_cache_size"`
	ACLCacheTTL  time.Duration `mapstructure:"acl_cache_ttl"`
}

// MetricsConfig defines metrics configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Load loads configuration from various sources
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Bind command line flags
	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Read from config file if specified
	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables, e.g. SWIFTGATE_STORAGE_BACKEND
	v.SetEnvPrefix("SWIFTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	// TLS defaults
	v.SetDefault("enable_tls", false)

	// Storage defaults
	v.SetDefault("storage.backend", "swift")
	v.SetDefault("storage.swift.reseller_prefix", "AUTH_")
	v.SetDefault("storage.swift.timeout", 30*time.Second)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.use_path_style", true)

	// S3 front end defaults
	v.SetDefault("s3.max_multi_delete_objects", 1000)
	v.SetDefault("s3.multi_delete_concurrency", 10)
	v.SetDefault("s3.max_multi_delete_body_size", 2*1024*1024)
	v.SetDefault("s3.multi_delete_timeout", 60*time.Second)
	v.SetDefault("s3.s3_acl", true)
	v.SetDefault("s3.acl_cache_size", 1024)
	v.SetDefault("s3.acl_cache_ttl", 30*time.Second)

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":         "listen",
		"log-level":      "log_level",
		"log-format":     "log_format",
		"enable-tls":     "enable_tls",
		"cert-file":      "cert_file",
		"key-file":       "key_file",
		"backend":        "storage.backend",
		"swift-endpoint": "storage.swift.endpoint",
	}

	for flag, key := range flags {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return err
		}
	}

	return nil
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "swift":
		if cfg.Storage.Swift.Endpoint == "" {
			return fmt.Errorf("storage.swift.endpoint is required for the swift backend")
		}
	case "s3":
		if cfg.Storage.S3.Endpoint == "" {
			return fmt.Errorf("storage.s3.endpoint is required for the s3 backend")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported storage backend: %q", cfg.Storage.Backend)
	}

	if cfg.S3.MaxMultiDeleteObjects <= 0 {
		return fmt.Errorf("s3.max_multi_delete_objects must be positive, got %d", cfg.S3.MaxMultiDeleteObjects)
	}
	if cfg.S3.MultiDeleteConcurrency <= 0 {
		return fmt.Errorf("s3.multi_delete_concurrency must be positive, got %d", cfg.S3.MultiDeleteConcurrency)
	}
	if cfg.S3.MaxMultiDeleteBodySize <= 0 {
		return fmt.Errorf("s3.max_multi_delete_body_size must be positive, got %d", cfg.S3.MaxMultiDeleteBodySize)
	}

	// Zero means no gateway deadline and default cache sizing
	if cfg.S3.MultiDeleteTimeout < 0 {
		return fmt.Errorf("s3.multi_delete_timeout must not be negative, got %s", cfg.S3.MultiDeleteTimeout)
	}
	if cfg.S3.ACLCacheSize < 0 {
		return fmt.Errorf("s3.acl_cache_size must not be negative, got %d", cfg.S3.ACLCacheSize)
	}
	if cfg.S3.ACLCacheTTL < 0 {
		return fmt.Errorf("s3.acl_cache_ttl must not be negative, got %s", cfg.S3.ACLCacheTTL)
	}

	// Validate TLS configuration
	if cfg.EnableTLS {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert-file or key-file not specified")
		}
	}

	return nil
}
