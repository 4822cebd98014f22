package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/dawidmalina/alertops/internal/plugin"
)

// envPrefix is the prefix of environment variables that override the file.
const envPrefix = "ALERTOPS"

type Config struct {
	ListenPort string `yaml:"listen_port" envconfig:"LISTEN_PORT"`
	LogLevel   string `yaml:"log_level" envconfig:"LOG_LEVEL"`
	LogFormat  string `yaml:"log_format" envconfig:"LOG_FORMAT"` // text or json

	WebhookAPIKey string   `yaml:"webhook_api_key" envconfig:"WEBHOOK_API_KEY"` // API key for webhook authentication (optional)
	AllowedIPs    []string `yaml:"allowed_ips" envconfig:"ALLOWED_IPS"`         // IP whitelist (optional, empty = allow all)
	RequireHTTPS  bool     `yaml:"require_https" envconfig:"REQUIRE_HTTPS"`     // Require HTTPS (optional, default: false)

	// TrustedProxies may set X-Forwarded-For/X-Real-IP/X-Forwarded-Proto (optional, empty = trust none)
	TrustedProxies []string `yaml:"trusted_proxies" envconfig:"TRUSTED_PROXIES"`

	MaxBodyBytes        int64         `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES"`
	RateLimitPerSecond  int           `yaml:"rate_limit_per_second" envconfig:"RATE_LIMIT_PER_SECOND"` // 0 disables
	ShutdownGracePeriod time.Duration `yaml:"shutdown_grace_period" envconfig:"SHUTDOWN_GRACE_PERIOD"`

	Plugins PluginsConfig `yaml:"plugins" ignored:"true"`

	// loadedFrom is the file the config was read from, empty when defaults
	// were used because the file does not exist.
	loadedFrom string
}

// PluginsConfig is the plugins block: the ordered enabled list plus one
// options mapping per plugin name.
//
//	plugins:
//	  enabled: [logger, recall]
//	  recall:
//	    max_history: 20
type PluginsConfig struct {
	Enabled []string
	Options map[string]plugin.Options
}

func (p *PluginsConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if p.Options == nil {
		p.Options = make(map[string]plugin.Options)
	}
	for key, val := range raw {
		if key == "enabled" {
			var enabled struct {
				Enabled []string `yaml:"enabled"`
			}
			if err := unmarshal(&enabled); err != nil {
				return fmt.Errorf("plugins.enabled: %w", err)
			}
			p.Enabled = enabled.Enabled
			continue
		}

		switch v := val.(type) {
		case nil:
			p.Options[key] = plugin.Options{}
		case map[interface{}]interface{}:
			p.Options[key] = plugin.Options(stringKeys(v))
		default:
			return fmt.Errorf("plugins.%s: options must be a mapping, got %T", key, val)
		}
	}
	return nil
}

// stringKeys converts the interface-keyed maps yaml.v2 produces.
func stringKeys(m map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = normalize(v)
	}
	return out
}

func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		return stringKeys(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	default:
		return v
	}
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		ListenPort:          "8080",
		LogLevel:            "info",
		LogFormat:           "text",
		MaxBodyBytes:        1 << 20,
		ShutdownGracePeriod: 10 * time.Second,
		Plugins: PluginsConfig{
			Enabled: []string{"logger"},
			Options: map[string]plugin.Options{},
		},
	}
}

// ParseConfig reads the YAML file at path over the defaults and applies
// ALERTOPS_* environment overrides. A missing file is not an error.
func ParseConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := yaml.NewDecoder(file).Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		config.loadedFrom = path
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := envconfig.Process(envPrefix, config); err != nil {
		return nil, fmt.Errorf("processing env vars overrides: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks values that cannot be caught while decoding.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.ListenPort)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("listen_port: invalid port %q", c.ListenPort)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format: must be text or json, got %q", c.LogFormat)
	}
	if err := validateIPs("allowed_ips", c.AllowedIPs); err != nil {
		return err
	}
	if err := validateIPs("trusted_proxies", c.TrustedProxies); err != nil {
		return err
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes: must be positive, got %d", c.MaxBodyBytes)
	}
	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("rate_limit_per_second: must not be negative, got %d", c.RateLimitPerSecond)
	}
	if c.ShutdownGracePeriod < 0 {
		return fmt.Errorf("shutdown_grace_period: must not be negative, got %s", c.ShutdownGracePeriod)
	}
	return nil
}

func validateIPs(key string, list []string) error {
	for _, ip := range list {
		ip = strings.TrimSpace(ip)
		if _, _, err := net.ParseCIDR(ip); err == nil {
			continue
		}
		if net.ParseIP(ip) == nil {
			return fmt.Errorf("%s: %q is neither an IP nor a CIDR", key, ip)
		}
	}
	return nil
}
