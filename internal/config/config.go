// Package config loads prospector settings from flags, environment and the
// optional ~/.prospector.yaml through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: PROSPECTOR_ENRICH_BATCH_SIZE.
const EnvPrefix = "PROSPECTOR"

// Config is the full application configuration.
type Config struct {
	Browser  BrowserConfig `mapstructure:"browser"`
	Engines  EngineConfig  `mapstructure:"engines"`
	Enrich   EnrichConfig  `mapstructure:"enrich"`
	Server   ServerConfig  `mapstructure:"server"`
	Redis    RedisConfig   `mapstructure:"redis"`
	Kafka    KafkaConfig   `mapstructure:"kafka"`
	DebugDir string        `mapstructure:"debug_dir"`
}

// BrowserConfig selects and tunes the browser provider.
type BrowserConfig struct {
	Mode       string `mapstructure:"mode" validate:"oneof=chrome static"`
	Headless   bool   `mapstructure:"headless"`
	ChromePath string `mapstructure:"chrome_path"`
	UserAgent  string `mapstructure:"user_agent"`
	NoSandbox  bool   `mapstructure:"no_sandbox"`
}

// EngineConfig sets engine order and the paging policy.
type EngineConfig struct {
	Order             []string      `mapstructure:"order" validate:"dive,oneof=bing duck brave mojeek ecosia"`
	MaxPages          int           `mapstructure:"max_pages" validate:"min=1,max=20"`
	Attempts          int           `mapstructure:"attempts" validate:"min=1,max=10"`
	BackoffBase       time.Duration `mapstructure:"backoff_base" validate:"min=0"`
	BackoffJitter     time.Duration `mapstructure:"backoff_jitter" validate:"min=0"`
	PageInterval      time.Duration `mapstructure:"page_interval" validate:"min=0"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"min=0"`
}

// EnrichConfig tunes page enrichment.
type EnrichConfig struct {
	BatchSize   int           `mapstructure:"batch_size" validate:"min=1,max=50"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxBodySize string        `mapstructure:"max_body_size" validate:"required"`

	// MaxBodyBytes is MaxBodySize parsed by Load.
	MaxBodyBytes uint64 `mapstructure:"-"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	// AllowOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	AllowOrigin string `mapstructure:"allow_origin"`
}

// RedisConfig enables the result cache and job store when URL is set.
type RedisConfig struct {
	URL       string        `mapstructure:"url" validate:"omitempty,url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	StatusTTL time.Duration `mapstructure:"status_ttl" validate:"min=0"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"min=0"`
}

// KafkaConfig enables job events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers" validate:"dive,hostname_port"`
	Topic   string   `mapstructure:"topic" validate:"required_with=Brokers"`
}

// SetDefaults registers every default on v. Every key gets one so that
// AutomaticEnv can see it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("browser.mode", "chrome")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", true)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.user_agent", "")

	v.SetDefault("engines.order", []string{"bing", "duck", "brave", "mojeek", "ecosia"})
	v.SetDefault("engines.max_pages", 3)
	v.SetDefault("engines.attempts", 3)
	v.SetDefault("engines.backoff_base", 2*time.Second)
	v.SetDefault("engines.backoff_jitter", 1500*time.Millisecond)
	v.SetDefault("engines.page_interval", 1500*time.Millisecond)
	v.SetDefault("engines.navigation_timeout", 30*time.Second)

	v.SetDefault("enrich.batch_size", 5)
	v.SetDefault("enrich.timeout", 10*time.Second)
	v.SetDefault("enrich.max_body_size", "512KB")

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allow_origin", "*")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "prospector:")
	v.SetDefault("redis.status_ttl", 24*time.Hour)
	v.SetDefault("redis.cache_ttl", 6*time.Hour)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "prospector.jobs")

	v.SetDefault("debug_dir", "")
}

// BindEnv wires PROSPECTOR_* environment variables into v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	n, err := humanize.ParseBytes(cfg.Enrich.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("config: enrich.max_body_size %q: %w", cfg.Enrich.MaxBodySize, err)
	}
	cfg.Enrich.MaxBodyBytes = n
	return cfg, nil
}

// New returns a viper instance with defaults and environment bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}
