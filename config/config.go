package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
	Tracking  TrackingConfig  `yaml:"tracking"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "kafka" or "mqtt"
	FleetID             string        `yaml:"fleet_id"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	MQTT                MQTTConfig    `yaml:"mqtt"`
	TelemetryTopic      string        `yaml:"telemetry_topic"`
	EventsTopic         string        `yaml:"events_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// TrackingConfig bounds location ingestion and snapshot composition.
type TrackingConfig struct {
	// ClockSkewWindow is how far in the future a client-supplied capture
	// time may be before the report is rejected.
	ClockSkewWindow time.Duration `yaml:"clock_skew_window"`
	// MaxReportAge is how old a capture time may be before the report is
	// rejected as stale.
	MaxReportAge time.Duration `yaml:"max_report_age"`
	// BreadcrumbLimit caps the breadcrumb slice returned in a snapshot.
	BreadcrumbLimit int `yaml:"breadcrumb_limit"`
	// Keepalive is the live-channel ping interval.
	Keepalive time.Duration `yaml:"keepalive"`
	// DefaultRegion frames the map when a route has no points yet.
	DefaultRegion RegionConfig `yaml:"default_region"`
}

type RegionConfig struct {
	MinLat float64 `yaml:"min_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLat float64 `yaml:"max_lat"`
	MaxLng float64 `yaml:"max_lng"`
}

func Defaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{Path: "fleettrack.db"},
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "fleettrack",
				User:     "fleettrack",
				Password: "",
				SSLMode:  "disable",
			},
		},
		Redis: RedisConfig{
			Address:  "localhost:6379",
			Password: "",
			DB:       0,
		},
		Web: WebConfig{
			Host:          "0.0.0.0",
			Port:          8084,
			SessionSecret: "change-me-in-production",
		},
		Messaging: MessagingConfig{
			Backend: "kafka",
			FleetID: "fleet-1",
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				GroupID: "fleettrack",
			},
			MQTT: MQTTConfig{
				Broker:   "localhost",
				Port:     1883,
				ClientID: "fleettrack",
			},
			TelemetryTopic:      "fleettrack.telemetry",
			EventsTopic:         "fleettrack.events",
			OutboxDrainInterval: 5 * time.Second,
		},
		Tracking: TrackingConfig{
			ClockSkewWindow: 5 * time.Minute,
			MaxReportAge:    24 * time.Hour,
			BreadcrumbLimit: 500,
			Keepalive:       30 * time.Second,
			// Kolkata metro area, where the first fleet runs.
			DefaultRegion: RegionConfig{
				MinLat: 22.45, MinLng: 88.25,
				MaxLat: 22.65, MaxLng: 88.45,
			},
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
