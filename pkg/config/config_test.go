package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
bridge:
  listen_addr: ":9090"
  log_level: debug
  poll_interval: 10m
toon:
  client_id: test-key
  client_secret: test-secret
  redirect_url: https://callback.example.com/oauth2/callback/
mqtt:
  broker_url: tcp://localhost:1883
store:
  path: /tmp/test.db
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Bridge.ListenAddr != ":9090" {
		t.Errorf("Expected listen_addr :9090, got %s", config.Bridge.ListenAddr)
	}
	if config.Bridge.PollInterval != 10*time.Minute {
		t.Errorf("Expected poll_interval 10m, got %v", config.Bridge.PollInterval)
	}
	if config.Toon.ClientID != "test-key" {
		t.Errorf("Expected client_id test-key, got %s", config.Toon.ClientID)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
toon:
  client_id: test-key
  client_secret: test-secret
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Toon.TenantID != "eneco" {
		t.Errorf("Expected default tenant_id eneco, got %s", config.Toon.TenantID)
	}
	if config.Toon.APIBaseURL != "https://api.toon.eu/toon/v3/" {
		t.Errorf("Unexpected default api_base_url: %s", config.Toon.APIBaseURL)
	}
	if config.Toon.TokenURL != "https://api.toon.eu/token" {
		t.Errorf("Unexpected default token_url: %s", config.Toon.TokenURL)
	}
	if config.Bridge.LogLevel != "info" {
		t.Errorf("Expected default log_level info, got %s", config.Bridge.LogLevel)
	}
	if config.MQTT.TopicPrefix != "homey/capability" {
		t.Errorf("Expected default topic_prefix homey/capability, got %s", config.MQTT.TopicPrefix)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing client_id",
			content: `
toon:
  client_secret: test-secret
`,
		},
		{
			name: "missing client_secret",
			content: `
toon:
  client_id: test-key
`,
		},
		{
			name: "poll interval too short",
			content: `
bridge:
  poll_interval: 10s
toon:
  client_id: test-key
  client_secret: test-secret
`,
		},
		{
			name: "invalid log level",
			content: `
bridge:
  log_level: verbose
toon:
  client_id: test-key
  client_secret: test-secret
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			if _, err := LoadConfig(path); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfigFile(t, `
toon:
  client_id: test-key
  client_secret: test-secret
`)

	t.Setenv("TOON_BRIDGE_LOG_LEVEL", "warn")
	t.Setenv("TOON_TOON_CLIENT_SECRET", "env-secret")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Bridge.LogLevel != "warn" {
		t.Errorf("Expected env override log_level warn, got %s", config.Bridge.LogLevel)
	}
	if config.Toon.ClientSecret != "env-secret" {
		t.Errorf("Expected env override client_secret, got %s", config.Toon.ClientSecret)
	}
}

func TestCreateExampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "example", "config.yaml")

	if err := CreateExampleConfig(path); err != nil {
		t.Fatalf("CreateExampleConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read example config: %v", err)
	}
	if len(data) == 0 {
		t.Error("Example config is empty")
	}
}
