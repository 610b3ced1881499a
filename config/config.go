package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Widget   WidgetConfig   `yaml:"widget"`
	Journal  JournalConfig  `yaml:"journal"`
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
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	ControlStateTopicName string `yaml:"control_state_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DispatchConfig struct {
	// Пустой адрес: тестовый стенд Dostavista.
	APIURL    string `yaml:"api_url"`
	ClientID  string `yaml:"client_id"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Debug     bool   `yaml:"debug"`
	Mode      string `yaml:"mode"` // "http" | "fake"

	SubmitRateLimitPerMinute int `yaml:"submit_rate_limit_per_minute"`
}

type WidgetConfig struct {
	HTTPAddr        string `yaml:"http_addr"`
	StateTTLSeconds int    `yaml:"state_ttl_seconds"`
}

type JournalConfig struct {
	HTTPAddr            string `yaml:"http_addr"`
	KafkaConsumerGroup  string `yaml:"kafka_consumer_group"`
	LastStateTTLSeconds int    `yaml:"last_state_ttl_seconds"`
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
