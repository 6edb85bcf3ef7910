package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	BackendDataService = "dataservice"
	BackendWarehouse   = "warehouse"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DataServiceURL     string        `mapstructure:"DATA_SERVICE_URL"`
	DataServiceTimeout time.Duration `mapstructure:"DATA_SERVICE_TIMEOUT"`
	DataServiceRPS     float64       `mapstructure:"DATA_SERVICE_RPS"`
	DataServiceBurst   int           `mapstructure:"DATA_SERVICE_BURST"`

	AreaCacheSize     int           `mapstructure:"AREA_CACHE_SIZE"`
	AreaCacheTTL      time.Duration `mapstructure:"AREA_CACHE_TTL"`
	LocationCacheSize int           `mapstructure:"LOCATION_CACHE_SIZE"`
	LocationCacheTTL  time.Duration `mapstructure:"LOCATION_CACHE_TTL"`

	EnrollmentYearFloor        int `mapstructure:"ENROLLMENT_YEAR_FLOOR"`
	EnrollmentFetchConcurrency int `mapstructure:"ENROLLMENT_FETCH_CONCURRENCY"`

	ReferralSourceLimit int    `mapstructure:"REFERRAL_SOURCE_LIMIT"`
	ReferralBackend     string `mapstructure:"REFERRAL_BACKEND"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`
	FacilityIndex    string `mapstructure:"FACILITY_INDEX"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
}

var defaults = map[string]interface{}{
	"PORT":                         "8000",
	"ENV":                          "development",
	"LOG_LEVEL":                    "info",
	"DATA_SERVICE_TIMEOUT":         "30s",
	"DATA_SERVICE_RPS":             0,
	"DATA_SERVICE_BURST":           10,
	"AREA_CACHE_SIZE":              1024,
	"AREA_CACHE_TTL":               "24h",
	"LOCATION_CACHE_SIZE":          4096,
	"LOCATION_CACHE_TTL":           "6h",
	"ENROLLMENT_YEAR_FLOOR":        2020,
	"ENROLLMENT_FETCH_CONCURRENCY": 4,
	"REFERRAL_SOURCE_LIMIT":        100,
	"REFERRAL_BACKEND":             BackendDataService,
	"DB_MAX_CONNS":                 10,
	"DB_MIN_CONNS":                 1,
	"FACILITY_INDEX":               "facilities",
	"CORS_ORIGINS":                 "http://localhost:3000",
	"RATE_LIMIT_RPS":               20,
	"RATE_LIMIT_BURST":             40,
	"REQUEST_TIMEOUT":              "60s",
	"BODY_LIMIT":                   "1M",
}

var optional = []string{"DATA_SERVICE_URL", "DATABASE_URL", "ELASTICSEARCH_URL"}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	for key, val := range defaults {
		v.SetDefault(key, val)
		v.BindEnv(key)
	}
	for _, key := range optional {
		v.BindEnv(key)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.ReferralBackend = strings.ToLower(strings.TrimSpace(cfg.ReferralBackend))

	if cfg.DataServiceURL == "" {
		return nil, fmt.Errorf("DATA_SERVICE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level parses LOG_LEVEL, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks value ranges and cross-field requirements.
func (c *Config) Validate() error {
	u, err := url.Parse(c.DataServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("DATA_SERVICE_URL must be an http(s) URL, got %q", c.DataServiceURL)
	}
	if c.DataServiceTimeout <= 0 {
		return fmt.Errorf("DATA_SERVICE_TIMEOUT must be positive")
	}
	if c.DataServiceRPS < 0 || c.RateLimitRPS < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.AreaCacheSize <= 0 || c.LocationCacheSize <= 0 {
		return fmt.Errorf("cache sizes must be positive")
	}
	if c.EnrollmentYearFloor < 1990 || c.EnrollmentYearFloor > 2100 {
		return fmt.Errorf("ENROLLMENT_YEAR_FLOOR out of range: %d", c.EnrollmentYearFloor)
	}
	if c.EnrollmentFetchConcurrency < 1 || c.EnrollmentFetchConcurrency > 32 {
		return fmt.Errorf("ENROLLMENT_FETCH_CONCURRENCY must be between 1 and 32, got %d", c.EnrollmentFetchConcurrency)
	}
	if c.ReferralSourceLimit < 1 || c.ReferralSourceLimit > 1000 {
		return fmt.Errorf("REFERRAL_SOURCE_LIMIT must be between 1 and 1000, got %d", c.ReferralSourceLimit)
	}
	switch c.ReferralBackend {
	case BackendDataService:
	case BackendWarehouse:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when REFERRAL_BACKEND is %q", BackendWarehouse)
		}
	default:
		return fmt.Errorf("REFERRAL_BACKEND must be %q or %q, got %q", BackendDataService, BackendWarehouse, c.ReferralBackend)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
