package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config - корневая структура конфигурации консоли и шлюза.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Elastic   ElasticConfig   `mapstructure:"elastic"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Retention RetentionConfig `mapstructure:"retention"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig описывает HTTP-сервер консоли.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GatewayConfig описывает порты шлюза детекции.
type GatewayConfig struct {
	HTTPPort    int `mapstructure:"http_port"`
	GRPCPort    int `mapstructure:"grpc_port"`
	MetricsPort int `mapstructure:"metrics_port"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL         string `mapstructure:"url"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub и блокировки).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ElasticConfig описывает хранилище журнала детекций.
type ElasticConfig struct {
	URL          string        `mapstructure:"url"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	IndexPrefix  string        `mapstructure:"index_prefix"`
	QueryTimeout time.Duration `mapstructure:"query_timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
}

// IndexName - имя индекса журнала, например dlp-logs.
func (e ElasticConfig) IndexName() string {
	return e.IndexPrefix + "-logs"
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // только для консоли
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	Issuer         string        `mapstructure:"issuer"`
	PublicKey      []byte
	PrivateKey     []byte
}

// DetectorConfig описывает внешний сервис модели PII.
type DetectorConfig struct {
	Addr      string        `mapstructure:"addr"` // пусто - используется заглушка
	ModelName string        `mapstructure:"model_name"`
	Threshold float64       `mapstructure:"threshold"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheSize int           `mapstructure:"cache_size"`
	RateLimit float64       `mapstructure:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst"`
}

// EngineConfig содержит настройки конвейера шлюза.
type EngineConfig struct {
	RecorderBufferSize    int           `mapstructure:"recorder_buffer_size"`
	RecorderBatchSize     int           `mapstructure:"recorder_batch_size"`
	RecorderFlushInterval time.Duration `mapstructure:"recorder_flush_interval"`

	// Настройки Circuit Breaker для детектора
	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
	CBFailures    uint32        `mapstructure:"cb_failures"`
	RetryAttempts uint          `mapstructure:"retry_attempts"`
}

// DashboardConfig ограничивает время сбора одного фасета.
type DashboardConfig struct {
	FacetTimeout time.Duration `mapstructure:"facet_timeout"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// RetentionConfig управляет фоновой очисткой журнала.
type RetentionConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// NATSConfig - публикация событий детекции. Пустой URL отключает публикацию.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// ELASTIC_URL=http://es:9200 перекроет elastic.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Файла нет - работаем на ENV и дефолтах
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// Сначала PEM из ENV (Docker/K8s), затем файл по пути из конфига
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("gateway.http_port", 8080)
	v.SetDefault("gateway.grpc_port", 50052)
	v.SetDefault("gateway.metrics_port", 9090)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.index_prefix", "dlp")
	v.SetDefault("elastic.query_timeout", 5*time.Second)
	v.SetDefault("elastic.max_retries", 2)

	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.token_ttl", 30*time.Minute)
	v.SetDefault("auth.issuer", "dlp-console")

	v.SetDefault("detector.addr", "")
	v.SetDefault("detector.model_name", "psh3333/roberta-large-korean-pii5")
	v.SetDefault("detector.threshold", 0.59)
	v.SetDefault("detector.timeout", 10*time.Second)
	v.SetDefault("detector.cache_size", 1024)
	v.SetDefault("detector.rate_limit", 100)
	v.SetDefault("detector.rate_burst", 20)

	v.SetDefault("engine.recorder_buffer_size", 10000)
	v.SetDefault("engine.recorder_batch_size", 100)
	v.SetDefault("engine.recorder_flush_interval", 500*time.Millisecond)
	v.SetDefault("engine.cb_max_requests", 3)
	v.SetDefault("engine.cb_interval", 5*time.Second)
	v.SetDefault("engine.cb_timeout", 30*time.Second)
	v.SetDefault("engine.cb_failures", 5)
	v.SetDefault("engine.retry_attempts", 3)

	v.SetDefault("dashboard.facet_timeout", 3*time.Second)
	v.SetDefault("dashboard.concurrency", 6)

	v.SetDefault("retention.enabled", true)
	v.SetDefault("retention.interval", time.Hour)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject_prefix", "dlp.detections")
	v.SetDefault("nats.timeout", 2*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
}

func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
