package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// TLS configures the MQTT TLS connection.
type TLS struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	CACerts  string `json:"ca_certs" yaml:"ca_certs" toml:"ca_certs"`
	CertFile string `json:"certfile" yaml:"certfile" toml:"certfile"`
	KeyFile  string `json:"keyfile" yaml:"keyfile" toml:"keyfile"`
	Insecure bool   `json:"insecure" yaml:"insecure" toml:"insecure"`
}

// LWT configures the MQTT Last Will and Testament.
type LWT struct {
	Topic   string `json:"topic" yaml:"topic" toml:"topic"`
	Payload string `json:"payload" yaml:"payload" toml:"payload"`
	QoS     int    `json:"qos" yaml:"qos" toml:"qos"`
	Retain  bool   `json:"retain" yaml:"retain" toml:"retain"`
}

// MQTT configures the broker connection.
type MQTT struct {
	Host         string `json:"host" yaml:"host" toml:"host"`
	Port         int    `json:"port" yaml:"port" toml:"port"`
	Username     string `json:"username" yaml:"username" toml:"username"`
	Password     string `json:"password" yaml:"password" toml:"password"`
	TopicPrefix  string `json:"topic_prefix" yaml:"topic_prefix" toml:"topic_prefix"`
	ClientID     string `json:"client_id" yaml:"client_id" toml:"client_id"`
	CleanSession bool   `json:"clean_session" yaml:"clean_session" toml:"clean_session"`
	Keepalive    int    `json:"keepalive" yaml:"keepalive" toml:"keepalive"`
	QoS          int    `json:"qos" yaml:"qos" toml:"qos"`
	TLS          TLS    `json:"tls" yaml:"tls" toml:"tls"`
	LWT          LWT    `json:"lwt" yaml:"lwt" toml:"lwt"`
}

// Vestaboard configures the board client.
type Vestaboard struct {
	APIKey      string `json:"api_key" yaml:"api_key" toml:"api_key"`
	LocalAPIKey string `json:"local_api_key" yaml:"local_api_key" toml:"local_api_key"`
	UseLocalAPI bool   `json:"use_local_api" yaml:"use_local_api" toml:"use_local_api"`
	LocalHost   string `json:"local_host" yaml:"local_host" toml:"local_host"`
	LocalPort   int    `json:"local_port" yaml:"local_port" toml:"local_port"`
	BoardType   string `json:"board_type" yaml:"board_type" toml:"board_type"`
}

// Config holds runtime parameters for the bridge.
type Config struct {
	MQTT       MQTT       `json:"mqtt" yaml:"mqtt" toml:"mqtt"`
	Vestaboard Vestaboard `json:"vestaboard" yaml:"vestaboard" toml:"vestaboard"`
	HTTPPort   int        `json:"http_port" yaml:"http_port" toml:"http_port"`
	LogLevel   string     `json:"log_level" yaml:"log_level" toml:"log_level"`
}

// Default returns the configuration used when nothing else is specified.
func Default() Config {
	return Config{
		MQTT: MQTT{
			Host:         "localhost",
			Port:         1883,
			TopicPrefix:  "vestaboard",
			CleanSession: true,
			Keepalive:    60,
		},
		Vestaboard: Vestaboard{
			LocalHost: "vestaboard.local",
			LocalPort: 7000,
			BoardType: "standard",
		},
		HTTPPort: 8000,
		LogLevel: "info",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Env wins over file
// values so deployments can keep secrets out of config files.
func ApplyEnv(cfg *Config) error {
	setString(&cfg.MQTT.Host, "MQTT_BROKER_HOST")
	if err := setInt(&cfg.MQTT.Port, "MQTT_BROKER_PORT"); err != nil {
		return err
	}
	setString(&cfg.MQTT.Username, "MQTT_USERNAME")
	setString(&cfg.MQTT.Password, "MQTT_PASSWORD")
	setString(&cfg.MQTT.TopicPrefix, "MQTT_TOPIC_PREFIX")
	setString(&cfg.MQTT.ClientID, "MQTT_CLIENT_ID")
	setBool(&cfg.MQTT.CleanSession, "MQTT_CLEAN_SESSION")
	if err := setInt(&cfg.MQTT.Keepalive, "MQTT_KEEPALIVE"); err != nil {
		return err
	}
	if err := setInt(&cfg.MQTT.QoS, "MQTT_QOS"); err != nil {
		return err
	}

	setBool(&cfg.MQTT.TLS.Enabled, "MQTT_TLS_ENABLED")
	setString(&cfg.MQTT.TLS.CACerts, "MQTT_TLS_CA_CERTS")
	setString(&cfg.MQTT.TLS.CertFile, "MQTT_TLS_CERTFILE")
	setString(&cfg.MQTT.TLS.KeyFile, "MQTT_TLS_KEYFILE")
	setBool(&cfg.MQTT.TLS.Insecure, "MQTT_TLS_INSECURE")

	setString(&cfg.MQTT.LWT.Topic, "MQTT_LWT_TOPIC")
	setString(&cfg.MQTT.LWT.Payload, "MQTT_LWT_PAYLOAD")
	if err := setInt(&cfg.MQTT.LWT.QoS, "MQTT_LWT_QOS"); err != nil {
		return err
	}
	setBool(&cfg.MQTT.LWT.Retain, "MQTT_LWT_RETAIN")

	setString(&cfg.Vestaboard.APIKey, "VESTABOARD_API_KEY")
	setString(&cfg.Vestaboard.LocalAPIKey, "VESTABOARD_LOCAL_API_KEY")
	setBool(&cfg.Vestaboard.UseLocalAPI, "USE_LOCAL_API")
	setString(&cfg.Vestaboard.LocalHost, "VESTABOARD_LOCAL_HOST")
	if err := setInt(&cfg.Vestaboard.LocalPort, "VESTABOARD_LOCAL_PORT"); err != nil {
		return err
	}
	setString(&cfg.Vestaboard.BoardType, "VESTABOARD_BOARD_TYPE")

	if err := setInt(&cfg.HTTPPort, "HTTP_PORT"); err != nil {
		return err
	}
	setString(&cfg.LogLevel, "LOG_LEVEL")
	return nil
}

// Validate rejects configurations that cannot possibly work.
func (c Config) Validate() error {
	if c.Vestaboard.APIKey == "" && c.Vestaboard.LocalAPIKey == "" {
		return fmt.Errorf("either vestaboard.api_key or vestaboard.local_api_key must be set")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0-2: %d", c.MQTT.QoS)
	}
	if c.MQTT.LWT.Topic != "" && (c.MQTT.LWT.QoS < 0 || c.MQTT.LWT.QoS > 2) {
		return fmt.Errorf("mqtt.lwt.qos must be 0-2: %d", c.MQTT.LWT.QoS)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port out of range: %d", c.HTTPPort)
	}
	switch strings.ToLower(strings.TrimSpace(c.Vestaboard.BoardType)) {
	case "", "standard", "note":
	default:
		return fmt.Errorf("unknown board_type: %q (valid: standard, note)", c.Vestaboard.BoardType)
	}
	if c.MQTT.TLS.Enabled && c.MQTT.TLS.CACerts == "" {
		return fmt.Errorf("mqtt.tls.ca_certs is required when TLS is enabled")
	}
	if (c.MQTT.TLS.CertFile == "") != (c.MQTT.TLS.KeyFile == "") {
		return fmt.Errorf("mqtt.tls certfile and keyfile must be set together")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		*dst = true
	case "false", "0", "no", "off":
		*dst = false
	}
}
