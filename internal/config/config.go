package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the relay. It is read once at startup
// and never mutated afterwards.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Attribution AttributionConfig `yaml:"attribution"`
	Collect     CollectConfig     `yaml:"collect"`
	HubSpot     HubSpotConfig     `yaml:"hubspot"`
	Pardot      PardotConfig      `yaml:"pardot"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the record persistence settings.
type StorageConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	// KeyName is the storage key the record lives under, per visitor.
	KeyName string `yaml:"key_name"`
	// ExpiryDays is the attribution window.
	ExpiryDays int `yaml:"expiry_days"`
	// CookieDomain is the domain scope of the visitor identity cookie.
	CookieDomain string `yaml:"cookie_domain"`
}

// TTL returns the attribution window as a duration.
func (s StorageConfig) TTL() time.Duration {
	return time.Duration(s.ExpiryDays) * 24 * time.Hour
}

// AttributionConfig parameterizes the resolution policy.
type AttributionConfig struct {
	ReferrersToIgnore  []string `yaml:"referrers_to_ignore"`
	OrganicHostnames   []string `yaml:"organic_hostnames"`
	ReplaceableMediums []string `yaml:"replaceable_mediums"`
	LowercaseClickIDs  bool     `yaml:"lowercase_click_ids"`
}

// CollectConfig holds the event intake settings.
type CollectConfig struct {
	VisitorCookie  string   `yaml:"visitor_cookie"`
	SessionCookie  string   `yaml:"session_cookie"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// HubSpotConfig holds the HubSpot forms integration settings.
type HubSpotConfig struct {
	Enabled        bool   `yaml:"enabled"`
	PortalID       string `yaml:"portal_id"`
	FormID         string `yaml:"form_id"`
	Endpoint       string `yaml:"endpoint"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// PardotConfig holds the Pardot form handler and WPForms settings.
type PardotConfig struct {
	Enabled             bool              `yaml:"enabled"`
	FormHandlerEndpoint string            `yaml:"form_handler_endpoint"`
	TimeoutSeconds      int               `yaml:"timeout_seconds"`
	// FormFields maps attribution keys to WPForms input names.
	FormFields map[string]string `yaml:"form_fields"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Storage.RedisAddr == "" {
		cfg.Storage.RedisAddr = "localhost:6379"
	}
	if cfg.Storage.KeyName == "" {
		cfg.Storage.KeyName = "utm_params"
	}
	if cfg.Storage.ExpiryDays == 0 {
		cfg.Storage.ExpiryDays = 90
	}
	if len(cfg.Attribution.OrganicHostnames) == 0 {
		cfg.Attribution.OrganicHostnames = []string{
			"google", "bing", "facebook", "linkedin", "twitter", "instagram",
		}
	}
	if len(cfg.Attribution.ReplaceableMediums) == 0 {
		cfg.Attribution.ReplaceableMediums = []string{
			"none", "direct", "referral", "helper_ref",
		}
	}
	if cfg.Collect.VisitorCookie == "" {
		cfg.Collect.VisitorCookie = "ar_vid"
	}
	if cfg.Collect.SessionCookie == "" {
		cfg.Collect.SessionCookie = "hubspotutk"
	}
	if cfg.HubSpot.TimeoutSeconds == 0 {
		cfg.HubSpot.TimeoutSeconds = 30
	}
	if cfg.Pardot.TimeoutSeconds == 0 {
		cfg.Pardot.TimeoutSeconds = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) before reading env vars, so secrets can
// live in .env locally and in real env vars in the container.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Storage.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Storage.RedisPassword = pw
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if d, err := strconv.Atoi(db); err == nil {
			cfg.Storage.RedisDB = d
		}
	}
	if portal := os.Getenv("HUBSPOT_PORTAL_ID"); portal != "" {
		cfg.HubSpot.PortalID = portal
	}
	if form := os.Getenv("HUBSPOT_FORM_ID"); form != "" {
		cfg.HubSpot.FormID = form
	}
	if endpoint := os.Getenv("PARDOT_FORM_HANDLER"); endpoint != "" {
		cfg.Pardot.FormHandlerEndpoint = endpoint
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.Collect.AllowedOrigins = strings.Split(origins, ",")
	}

	return cfg, nil
}

// Validate checks that enabled integrations carry the identifiers they need.
func (c *Config) Validate() error {
	if c.HubSpot.Enabled {
		if c.HubSpot.PortalID == "" || c.HubSpot.FormID == "" {
			return fmt.Errorf("hubspot integration enabled without portal_id/form_id")
		}
	}
	if c.Pardot.Enabled && c.Pardot.FormHandlerEndpoint == "" {
		return fmt.Errorf("pardot integration enabled without form_handler_endpoint")
	}
	if c.Storage.ExpiryDays < 0 {
		return fmt.Errorf("storage expiry_days must not be negative")
	}
	return nil
}
