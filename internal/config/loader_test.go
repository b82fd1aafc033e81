package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
mqtt:
  host: broker.example
  port: 8883
  topic_prefix: boards/kitchen
  qos: 1
  tls:
    enabled: true
    ca_certs: /etc/ssl/ca.pem
vestaboard:
  api_key: secret
  board_type: note
http_port: 9000
log_level: debug
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.Host != "broker.example" || cfg.MQTT.Port != 8883 {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.MQTT.TopicPrefix != "boards/kitchen" || cfg.MQTT.QoS != 1 {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if !cfg.MQTT.TLS.Enabled || cfg.MQTT.TLS.CACerts != "/etc/ssl/ca.pem" {
		t.Fatalf("tls = %+v", cfg.MQTT.TLS)
	}
	if cfg.Vestaboard.APIKey != "secret" || cfg.Vestaboard.BoardType != "note" {
		t.Fatalf("vestaboard = %+v", cfg.Vestaboard)
	}
	if cfg.HTTPPort != 9000 || cfg.LogLevel != "debug" {
		t.Fatalf("cfg = %+v", cfg)
	}
	// Defaults survive for fields the file does not mention.
	if cfg.Vestaboard.LocalPort != 7000 {
		t.Fatalf("local_port = %d, want default 7000", cfg.Vestaboard.LocalPort)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeTemp(t, "config.json", `{
  "mqtt": {"host": "h", "port": 1884},
  "vestaboard": {"local_api_key": "k", "use_local_api": true}
}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.Host != "h" || cfg.MQTT.Port != 1884 {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Vestaboard.LocalAPIKey != "k" || !cfg.Vestaboard.UseLocalAPI {
		t.Fatalf("vestaboard = %+v", cfg.Vestaboard)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeTemp(t, "config.toml", `
http_port = 8080

[mqtt]
host = "h"
client_id = "bridge-1"

[vestaboard]
api_key = "k"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MQTT.Host != "h" || cfg.MQTT.ClientID != "bridge-1" || cfg.HTTPPort != 8080 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeTemp(t, "config.ini", "x=1")
	if _, err := Load(path); err == nil {
		t.Fatal("unknown extension accepted")
	}
	if _, err := Load(""); err == nil {
		t.Fatal("empty path accepted")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestApplyEnvOverlays(t *testing.T) {
	t.Setenv("MQTT_BROKER_HOST", "env-broker")
	t.Setenv("MQTT_BROKER_PORT", "2883")
	t.Setenv("MQTT_CLEAN_SESSION", "false")
	t.Setenv("VESTABOARD_API_KEY", "env-key")
	t.Setenv("USE_LOCAL_API", "yes")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := Default()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.MQTT.Host != "env-broker" || cfg.MQTT.Port != 2883 {
		t.Fatalf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.MQTT.CleanSession {
		t.Fatal("clean_session not overridden to false")
	}
	if cfg.Vestaboard.APIKey != "env-key" || !cfg.Vestaboard.UseLocalAPI {
		t.Fatalf("vestaboard = %+v", cfg.Vestaboard)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log_level = %q", cfg.LogLevel)
	}
}

func TestApplyEnvRejectsBadInt(t *testing.T) {
	t.Setenv("MQTT_BROKER_PORT", "not-a-port")
	cfg := Default()
	if err := ApplyEnv(&cfg); err == nil {
		t.Fatal("bad port accepted")
	}
}

func TestValidate(t *testing.T) {
	valid := Default()
	valid.Vestaboard.APIKey = "k"
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no keys", func(c *Config) { c.Vestaboard.APIKey = "" }},
		{"bad mqtt port", func(c *Config) { c.MQTT.Port = 0 }},
		{"bad qos", func(c *Config) { c.MQTT.QoS = 3 }},
		{"bad http port", func(c *Config) { c.HTTPPort = 70000 }},
		{"bad board type", func(c *Config) { c.Vestaboard.BoardType = "mega" }},
		{"tls without ca", func(c *Config) { c.MQTT.TLS.Enabled = true }},
		{"cert without key", func(c *Config) { c.MQTT.TLS.CertFile = "/c.pem" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("invalid config accepted")
			}
		})
	}
}
