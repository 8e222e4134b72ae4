package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Bridge BridgeConfig `mapstructure:"bridge" yaml:"bridge"`
	Toon   ToonConfig   `mapstructure:"toon" yaml:"toon"`
	MQTT   MQTTConfig   `mapstructure:"mqtt" yaml:"mqtt"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
}

// BridgeConfig contains core application settings
type BridgeConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	LogLevel     string        `mapstructure:"log_level" yaml:"log_level"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// ToonConfig contains the vendor OAuth2 client settings
type ToonConfig struct {
	ClientID           string `mapstructure:"client_id" yaml:"client_id"`
	ClientSecret       string `mapstructure:"client_secret" yaml:"client_secret"`
	TenantID           string `mapstructure:"tenant_id" yaml:"tenant_id"`
	APIBaseURL         string `mapstructure:"api_base_url" yaml:"api_base_url"`
	TokenURL           string `mapstructure:"token_url" yaml:"token_url"`
	AuthorizeURL       string `mapstructure:"authorize_url" yaml:"authorize_url"`
	RedirectURL        string `mapstructure:"redirect_url" yaml:"redirect_url"`
	WebhookCallbackURL string `mapstructure:"webhook_callback_url" yaml:"webhook_callback_url"`
}

// MQTTConfig contains the capability sink broker settings
type MQTTConfig struct {
	BrokerURL   string `mapstructure:"broker_url" yaml:"broker_url"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	Username    string `mapstructure:"username" yaml:"username"`
	Password    string `mapstructure:"password" yaml:"password"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
}

// StoreConfig contains session persistence settings
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoadConfig loads configuration from a YAML file. Every key can be
// overridden through the environment with a TOON_ prefix, e.g.
// TOON_TOON_CLIENT_SECRET overrides toon.client_secret.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TOON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &config, nil
}

// setDefaults registers default values for configuration fields
func setDefaults(v *viper.Viper) {
	v.SetDefault("bridge.listen_addr", ":8080")
	v.SetDefault("bridge.log_level", "info")
	v.SetDefault("bridge.poll_interval", 5*time.Minute)
	v.SetDefault("toon.tenant_id", "eneco")
	v.SetDefault("toon.api_base_url", "https://api.toon.eu/toon/v3/")
	v.SetDefault("toon.token_url", "https://api.toon.eu/token")
	v.SetDefault("toon.authorize_url", "https://api.toon.eu/authorize")
	v.SetDefault("mqtt.client_id", "toon-bridge")
	v.SetDefault("mqtt.topic_prefix", "homey/capability")
	v.SetDefault("store.path", "toon-bridge.db")
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Toon.ClientID == "" {
		return fmt.Errorf("toon.client_id is required")
	}
	if config.Toon.ClientSecret == "" {
		return fmt.Errorf("toon.client_secret is required")
	}
	if config.Bridge.PollInterval != 0 && config.Bridge.PollInterval < time.Minute {
		return fmt.Errorf("bridge.poll_interval must be at least 1 minute (or 0 to disable polling)")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[config.Bridge.LogLevel] {
		return fmt.Errorf("invalid bridge.log_level: %s, must be one of: debug, info, warn, error", config.Bridge.LogLevel)
	}

	return nil
}

// CreateExampleConfig creates an example configuration file
func CreateExampleConfig(path string) error {
	config := Config{
		Bridge: BridgeConfig{
			ListenAddr:   ":8080",
			LogLevel:     "info",
			PollInterval: 5 * time.Minute,
		},
		Toon: ToonConfig{
			ClientID:           "${TOON_KEY_V3}",
			ClientSecret:       "${TOON_SECRET_V3}",
			TenantID:           "eneco",
			APIBaseURL:         "https://api.toon.eu/toon/v3/",
			TokenURL:           "https://api.toon.eu/token",
			AuthorizeURL:       "https://api.toon.eu/authorize",
			RedirectURL:        "https://callback.example.com/oauth2/callback/",
			WebhookCallbackURL: "https://webhooks.example.com/toon/webhook",
		},
		MQTT: MQTTConfig{
			BrokerURL:   "tcp://localhost:1883",
			ClientID:    "toon-bridge",
			TopicPrefix: "homey/capability",
		},
		Store: StoreConfig{
			Path: "toon-bridge.db",
		},
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling example config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing example config: %w", err)
	}

	return nil
}
