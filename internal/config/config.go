// Package config loads and validates catalog pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/program-catalog/internal/storage"
)

// Provider names accepted by the storage, items and notify sections.
const (
	ProviderMemory   = "memory"
	ProviderLocal    = "local"
	ProviderGCS      = "gcs"
	ProviderS3       = "s3"
	ProviderPostgres = "postgres"
	ProviderDynamoDB = "dynamodb"
	ProviderPubSub   = "pubsub"
	ProviderNone     = "none"
)

// Listing fetch modes.
const (
	ListingModeHTTP     = "http"
	ListingModeHeadless = "headless"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Listing  ListingConfig  `mapstructure:"listing"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Items    ItemsConfig    `mapstructure:"items"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the HTTP invocation surface.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// ListingConfig names the listing pages and how their links resolve.
type ListingConfig struct {
	URLs          []string `mapstructure:"urls"`
	Origin        string   `mapstructure:"origin"`
	DefaultFilter string   `mapstructure:"default_filter"`
}

// FetchConfig configures the HTTP client shared by every stage.
type FetchConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int    `mapstructure:"max_body_bytes"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	ListingMode    string `mapstructure:"listing_mode"`

	// RequestsPerSecond throttles fetches per host; 0 disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// HeadlessConfig configures the headless listing renderer.
type HeadlessConfig struct {
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector  string `mapstructure:"wait_selector"`
	SettleMillis  int    `mapstructure:"settle_ms"`
}

// PipelineConfig governs stage fan-out and notification.
type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// StorageConfig selects the blob store and its key layout.
type StorageConfig struct {
	Provider     string      `mapstructure:"provider"`
	RawPrefix    string      `mapstructure:"raw_prefix"`
	PDFPrefix    string      `mapstructure:"pdf_prefix"`
	OutputPrefix string      `mapstructure:"output_prefix"`
	CatalogName  string      `mapstructure:"catalog_name"`
	Local        LocalConfig `mapstructure:"local"`
	GCS          GCSConfig   `mapstructure:"gcs"`
	S3           S3Config    `mapstructure:"s3"`
}

// LocalConfig configures the filesystem blob store.
type LocalConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSConfig configures the GCS blob store.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// S3Config configures the S3 blob store.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// ItemsConfig selects the item store.
type ItemsConfig struct {
	Provider string         `mapstructure:"provider"`
	DB       DBConfig       `mapstructure:"db"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxConns     int32  `mapstructure:"max_conns"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// DynamoDBConfig configures the DynamoDB item store.
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// NotifyConfig holds metadata for publish notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"`
	Topic     string `mapstructure:"topic"`
	ProjectID string `mapstructure:"project_id"`
	Endpoint  string `mapstructure:"endpoint"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	layout := storage.DefaultLayout()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("listing.urls", []string{
		"https://catalog.odu.edu/programs/#filter=.filter_8",
		"https://catalog.odu.edu/programs/#filter=.filter_2",
	})
	v.SetDefault("listing.origin", "https://catalog.odu.edu")
	v.SetDefault("listing.default_filter", ".filter_2")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0")
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_body_bytes", 0)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("fetch.listing_mode", ListingModeHTTP)
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.wait_selector", "li.item")
	v.SetDefault("headless.settle_ms", 500)
	v.SetDefault("pipeline.concurrency", 0)
	v.SetDefault("storage.provider", ProviderS3)
	v.SetDefault("storage.raw_prefix", layout.RawPrefix)
	v.SetDefault("storage.pdf_prefix", layout.PDFPrefix)
	v.SetDefault("storage.output_prefix", layout.OutputPrefix)
	v.SetDefault("storage.catalog_name", layout.CatalogName)
	v.SetDefault("storage.local.base_dir", "data")
	v.SetDefault("storage.s3.bucket", "cloudaillc-vivek")
	v.SetDefault("storage.s3.region", "")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.use_path_style", false)
	v.SetDefault("storage.s3.access_key_id", "")
	v.SetDefault("storage.s3.secret_access_key", "")
	v.SetDefault("storage.gcs.bucket", "")
	v.SetDefault("items.provider", ProviderDynamoDB)
	v.SetDefault("items.db.dsn", "")
	v.SetDefault("items.db.table", "program_data")
	v.SetDefault("items.db.max_conns", 4)
	v.SetDefault("items.db.ensure_schema", true)
	v.SetDefault("items.dynamodb.table", "program_data")
	v.SetDefault("items.dynamodb.region", "")
	v.SetDefault("items.dynamodb.endpoint", "")
	v.SetDefault("notify.provider", ProviderNone)
	v.SetDefault("notify.topic", "")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.endpoint", "")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Listing.URLs) == 0 {
		return fmt.Errorf("listing.urls must not be empty")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxBodyBytes < 0 {
		return fmt.Errorf("fetch.max_body_bytes must be >= 0")
	}
	if c.Fetch.RequestsPerSecond < 0 {
		return fmt.Errorf("fetch.requests_per_second must be >= 0")
	}
	switch c.Fetch.ListingMode {
	case ListingModeHTTP:
	case ListingModeHeadless:
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when fetch.listing_mode is headless")
		}
	default:
		return fmt.Errorf("unknown fetch.listing_mode %q", c.Fetch.ListingMode)
	}
	if c.Pipeline.Concurrency < 0 {
		return fmt.Errorf("pipeline.concurrency must be >= 0")
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Items.validate(); err != nil {
		return err
	}
	return c.Notify.validate()
}

func (s StorageConfig) validate() error {
	switch s.Provider {
	case ProviderMemory:
	case ProviderLocal:
		if s.Local.BaseDir == "" {
			return fmt.Errorf("storage.local.base_dir is required for the local provider")
		}
	case ProviderGCS:
		if s.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required for the gcs provider")
		}
	case ProviderS3:
		if s.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", s.Provider)
	}
	return nil
}

func (i ItemsConfig) validate() error {
	switch i.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if i.DB.DSN == "" {
			return fmt.Errorf("items.db.dsn is required for the postgres provider")
		}
	case ProviderDynamoDB:
		if i.DynamoDB.Table == "" {
			return fmt.Errorf("items.dynamodb.table is required for the dynamodb provider")
		}
	default:
		return fmt.Errorf("unknown items.provider %q", i.Provider)
	}
	return nil
}

func (n NotifyConfig) validate() error {
	switch n.Provider {
	case ProviderNone, "":
	case ProviderMemory:
		if n.Topic == "" {
			return fmt.Errorf("notify.topic is required when notifications are enabled")
		}
	case ProviderPubSub:
		if n.Topic == "" || n.ProjectID == "" {
			return fmt.Errorf("notify.topic and notify.project_id are required for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", n.Provider)
	}
	return nil
}

// Layout converts the storage prefixes into a key layout.
func (c Config) Layout() storage.Layout {
	return storage.Layout{
		RawPrefix:    c.Storage.RawPrefix,
		PDFPrefix:    c.Storage.PDFPrefix,
		OutputPrefix: c.Storage.OutputPrefix,
		CatalogName:  c.Storage.CatalogName,
	}
}

// FetchTimeout is the per-request timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NotifyTopic returns the topic to notify, or "" when notifications are disabled.
func (c Config) NotifyTopic() string {
	if c.Notify.Provider == ProviderNone || c.Notify.Provider == "" {
		return ""
	}
	return c.Notify.Topic
}
