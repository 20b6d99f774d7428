package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Notifier   NotifierConfig   `yaml:"notifier"`
	Chat       ChatConfig       `yaml:"chat"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"30"` // в минутах
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// NotifierConfig очередь уведомлений о смене статуса заказа
type NotifierConfig struct {
	QueueSize int         `yaml:"queue_size" env-default:"100"`
	Kafka     KafkaConfig `yaml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" env-default:"false"`
	Brokers []string `yaml:"brokers" env-separator:","`
	Topic   string   `yaml:"topic" env-default:"order-status"`
}

// ChatConfig настройки чата по товару
type ChatConfig struct {
	HistoryLimit int           `yaml:"history_limit" env-default:"50"`
	WriteTimeout time.Duration `yaml:"write_timeout" env-default:"10s"`
	Redis        RedisConfig   `yaml:"redis"`
}

// RedisConfig - ретрансляция сообщений между инстансами, по умолчанию выключена
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Address  string `yaml:"address" env-default:"localhost:6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	Channel  string `yaml:"channel" env-default:"chat-relay"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	flag.StringVar(&path, "config", "", "path to config file")
	flag.Parse()

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
