package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Redis      RedisConfig      `yaml:"redis"`
	ShipStream ShipStreamConfig `yaml:"shipstream"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                     string `yaml:"host"`
	Port                     int    `yaml:"port"`
	ShipmentEventsTopicName  string `yaml:"shipment_events_topic_name"`
	ShipmentUpdatedTopicName string `yaml:"shipment_updated_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type ShipStreamConfig struct {
	HTTPAddr           string `yaml:"http_addr"`
	WorkerHTTPAddr     string `yaml:"worker_http_addr"`
	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	SnapshotTTLSeconds int `yaml:"snapshot_ttl_seconds"`

	// Sub-second budgets for the non-durable paths (cache lookups, fan-out publish).
	CacheTimeoutMillis   int `yaml:"cache_timeout_millis"`
	PublishTimeoutMillis int `yaml:"publish_timeout_millis"`

	// Budget for the projection-update transaction.
	StoreTimeoutSeconds int `yaml:"store_timeout_seconds"`

	OperatorToken string `yaml:"operator_token"`
	// Per-user bearer tokens (token -> user id) for the inbox endpoints
	// and the authenticated viewer class.
	UserTokens               map[string]uint64 `yaml:"user_tokens"`
	IngestRateLimitPerMinute int               `yaml:"ingest_rate_limit_per_minute"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
