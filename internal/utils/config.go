package utils

import (
	"fmt"
	"os"

	"netshield-detector/internal/classifier"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Application ApplicationConfig `yaml:"application"`
	Classifier  classifier.Config `yaml:"classifier"`
	Aggregator  AggregatorConfig  `yaml:"aggregator"`
	Alerting    AlertingConfig    `yaml:"alerting"`
	Mongo       MongoConfig       `yaml:"mongo"`
	Logging     LoggingConfig     `yaml:"logging"`
}

type ApplicationConfig struct {
	APIPort     string `yaml:"api_port"`
	MetricsPort string `yaml:"metrics_port"`
}

type AggregatorConfig struct {
	TopSources    int `yaml:"top_sources"`
	TopTypes      int `yaml:"top_types"`
	DedupCapacity int `yaml:"dedup_capacity"`
}

type AlertingConfig struct {
	Enabled         bool                `yaml:"enabled"`
	VolumeThreshold int                 `yaml:"volume_threshold"`
	WindowSeconds   int                 `yaml:"window_seconds"`
	Channels        AlertChannelsConfig `yaml:"channels"`
	Telegram        TelegramConfig      `yaml:"telegram"`
	Webhook         WebhookConfig       `yaml:"webhook"`
}

type AlertChannelsConfig struct {
	Log      bool `yaml:"log"`
	Telegram bool `yaml:"telegram"`
	Webhook  bool `yaml:"webhook"`
}

type TelegramConfig struct {
	BotToken        string `yaml:"bot_token"`
	ChatID          string `yaml:"chat_id"`
	ParseMode       string `yaml:"parse_mode"`
	Enabled         bool   `yaml:"enabled"`
	MessageTemplate string `yaml:"message_template,omitempty"`
}

type WebhookConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type MongoConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	Database       string `yaml:"database"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// LoadConfig reads a YAML config file and fills defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		filename = "configs/netshield.yaml"
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config file %s: %v", filename, err)
	}

	config.Validate()
	return &config, nil
}

// Validate fills unset fields with defaults.
func (c *Config) Validate() {
	if c.Application.APIPort == "" {
		c.Application.APIPort = "5001"
	}
	if c.Application.MetricsPort == "" {
		c.Application.MetricsPort = "8081"
	}

	c.Classifier.Validate()

	if c.Aggregator.TopSources <= 0 {
		c.Aggregator.TopSources = 10
	}
	if c.Aggregator.TopTypes <= 0 {
		c.Aggregator.TopTypes = 5
	}
	if c.Aggregator.DedupCapacity <= 0 {
		c.Aggregator.DedupCapacity = 1024
	}

	if c.Alerting.VolumeThreshold <= 0 {
		c.Alerting.VolumeThreshold = 10
	}
	if c.Alerting.WindowSeconds <= 0 {
		c.Alerting.WindowSeconds = 60
	}
	if c.Alerting.Telegram.ParseMode == "" {
		c.Alerting.Telegram.ParseMode = "Markdown"
	}

	if c.Mongo.URL == "" {
		c.Mongo.URL = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "netshield"
	}
	if c.Mongo.TimeoutSeconds <= 0 {
		c.Mongo.TimeoutSeconds = 10
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "INFO"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// GetDefaultConfig returns a config usable without any file on disk.
func GetDefaultConfig() *Config {
	config := &Config{
		Alerting: AlertingConfig{
			Enabled: true,
			Channels: AlertChannelsConfig{
				Log: true,
			},
		},
	}
	config.Validate()
	return config
}
