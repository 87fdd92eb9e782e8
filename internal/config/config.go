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
	Catalog    CatalogConfig    `yaml:"catalog"`
	Redis      RedisConfig      `yaml:"redis"`
	Checkout   CheckoutConfig   `yaml:"checkout"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"15s"`
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
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// CatalogConfig внешний API каталога и его кэш
type CatalogConfig struct {
	BaseURL string        `yaml:"base_url" env:"CATALOG_BASE_URL" env-default:"https://dummyjson.com/products"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	// CacheTTL окно свежести полного снимка каталога
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"300s"`
	// SyncInterval период обновления зеркала товаров, 0 - фоновая синхронизация выключена
	SyncInterval time.Duration `yaml:"sync_interval" env-default:"0s"`
	SyncOnStart  bool          `yaml:"sync_on_start" env-default:"false"`
	Breaker      BreakerConfig `yaml:"breaker"`
}

// BreakerConfig настройки circuit breaker вокруг внешнего API
type BreakerConfig struct {
	MaxRequests         uint32        `yaml:"max_requests" env-default:"1"`
	Interval            time.Duration `yaml:"interval" env-default:"60s"`
	Timeout             time.Duration `yaml:"timeout" env-default:"30s"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" env-default:"5"`
}

// RedisConfig если включен, снимок каталога хранится в redis, а не в памяти процесса
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	Address  string `yaml:"address" env-default:"localhost:6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env-default:"0"`
}

type CheckoutConfig struct {
	// LockTimeout ограничивает ожидание блокировок строк при оформлении заказа
	LockTimeout time.Duration `yaml:"lock_timeout" env-default:"5s"`
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
