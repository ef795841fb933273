package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/lepinkainen/smart-url-view/pkg/filesystem"
)

// DefaultCacheHours is the HTML cache lifetime used when none is configured.
const DefaultCacheHours = 24

// Cache backends
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Settings are the per-call switches that change what a transform produces.
type Settings struct {
	ExternalEnabled bool `mapstructure:"external_enabled"` // Turn external URLs into cards
	InternalEnabled bool `mapstructure:"internal_enabled"` // Turn site URLs into post cards
	AllBlocks       bool `mapstructure:"all_blocks"`       // Also rewrite URLs inside quote/div/section/aside/article
	ExternalBlank   bool `mapstructure:"external_blank"`   // Open external cards in a new tab
	CacheHours      int  `mapstructure:"cache_hours"`      // HTML cache lifetime
}

// DefaultSettings returns the settings of a fresh installation.
func DefaultSettings() Settings {
	return Settings{
		ExternalEnabled: true,
		InternalEnabled: true,
		AllBlocks:       false,
		ExternalBlank:   true,
		CacheHours:      DefaultCacheHours,
	}
}

// CacheTTL returns the HTML cache lifetime, falling back to the default for
// non-positive values.
func (s Settings) CacheTTL() time.Duration {
	hours := s.CacheHours
	if hours <= 0 {
		hours = DefaultCacheHours
	}
	return time.Duration(hours) * time.Hour
}

// Config holds the central application configuration
type Config struct {
	// The site whose URLs count as internal
	Site struct {
		URL  string `mapstructure:"url"`  // Base URL, e.g. "https://example.com"
		Name string `mapstructure:"name"` // Display name shown on internal cards
	} `mapstructure:"site"`

	Settings Settings `mapstructure:"settings"`

	// Outbound fetches for page metadata and images
	HTTP struct {
		Timeout            time.Duration `mapstructure:"timeout"`
		UserAgent          string        `mapstructure:"user_agent"`
		InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
		MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	} `mapstructure:"http"`

	// HTML fragment cache
	Cache struct {
		Backend string `mapstructure:"backend"` // "sqlite" or "redis"
		Path    string `mapstructure:"path"`    // SQLite database file
	} `mapstructure:"cache"`

	Redis struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"redis"`

	// Thumbnail cache
	Images struct {
		Dir          string `mapstructure:"dir"`
		BaseURL      string `mapstructure:"base_url"`
		MaxDimension int    `mapstructure:"max_dimension"`
		Quality      int    `mapstructure:"quality"`
		StrictHTTPS  bool   `mapstructure:"strict_https"`
	} `mapstructure:"images"`

	// Post store backing internal cards
	Posts struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"posts"`

	// Card template overrides; files here replace the embedded ones
	Templates struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"templates"`

	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.url", "")
	v.SetDefault("site.name", "")

	defaults := DefaultSettings()
	v.SetDefault("settings.external_enabled", defaults.ExternalEnabled)
	v.SetDefault("settings.internal_enabled", defaults.InternalEnabled)
	v.SetDefault("settings.all_blocks", defaults.AllBlocks)
	v.SetDefault("settings.external_blank", defaults.ExternalBlank)
	v.SetDefault("settings.cache_hours", defaults.CacheHours)

	v.SetDefault("http.timeout", "15s")
	v.SetDefault("http.user_agent", "Mozilla/5.0 (compatible; SmartURLView/1.0)")
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("http.max_body_bytes", 5*1024*1024)

	v.SetDefault("cache.backend", BackendSQLite)
	v.SetDefault("cache.path", "smart-url-view.db")
	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("images.dir", "cache/images")
	v.SetDefault("images.base_url", "http://localhost:8080/images")
	v.SetDefault("images.max_dimension", 400)
	v.SetDefault("images.quality", 90)
	v.SetDefault("images.strict_https", false)

	v.SetDefault("posts.path", "smart-url-view.db")
	v.SetDefault("templates.dir", "")
	v.SetDefault("server.addr", ":8080")
}

// LoadConfig loads the configuration from a file. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = "config.yaml"
	}
	path = filesystem.ResolvePath(path)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Read configuration file
	if err := v.ReadInConfig(); err != nil {
		// If config file doesn't exist, that's okay - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && filesystem.FileExists(path) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Settings.CacheHours < 0 {
		return fmt.Errorf("settings.cache_hours must not be negative, got %d", c.Settings.CacheHours)
	}
	return nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	if path == "" {
		path = "config.yaml"
	}
	if err := filesystem.EnsureDirectoryExists(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set values from config struct
	v.Set("site.url", config.Site.URL)
	v.Set("site.name", config.Site.Name)

	v.Set("settings.external_enabled", config.Settings.ExternalEnabled)
	v.Set("settings.internal_enabled", config.Settings.InternalEnabled)
	v.Set("settings.all_blocks", config.Settings.AllBlocks)
	v.Set("settings.external_blank", config.Settings.ExternalBlank)
	v.Set("settings.cache_hours", config.Settings.CacheHours)

	v.Set("http.timeout", config.HTTP.Timeout.String())
	v.Set("http.user_agent", config.HTTP.UserAgent)
	v.Set("http.insecure_skip_verify", config.HTTP.InsecureSkipVerify)
	v.Set("http.max_body_bytes", config.HTTP.MaxBodyBytes)

	v.Set("cache.backend", config.Cache.Backend)
	v.Set("cache.path", config.Cache.Path)
	v.Set("redis.addr", config.Redis.Addr)

	v.Set("images.dir", config.Images.Dir)
	v.Set("images.base_url", config.Images.BaseURL)
	v.Set("images.max_dimension", config.Images.MaxDimension)
	v.Set("images.quality", config.Images.Quality)
	v.Set("images.strict_https", config.Images.StrictHTTPS)

	v.Set("posts.path", config.Posts.Path)
	v.Set("templates.dir", config.Templates.Dir)
	v.Set("server.addr", config.Server.Addr)

	return v.WriteConfig()
}
