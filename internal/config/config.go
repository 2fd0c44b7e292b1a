package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup and passed
// explicitly to the factory. Nothing reads the environment after LoadConfig.
type Config struct {
	Environment string

	Server        ServerConfig
	MySQL         MySQLConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Clickhouse    ClickhouseConfig
	Elasticsearch ElasticsearchConfig
	KMS           KMSConfig
	CSRF          CSRFConfig
	RateLimit     RateLimitConfig
	Admin         AdminConfig
	Logging       LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	AutoCertDir  string
	Domain       string
	Email        string
	CertFile     string
	KeyFile      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Origins allowed by the CORS middleware.
	AllowedOrigins []string
}

type MySQLConfig struct {
	DSN             string
	Host            string
	Port            int
	Database        string
	Username        string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	AuditTopic string
	AuditGroup string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Database string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	Enabled      bool
	URL          string
	Username     string
	Password     string
	CommentIndex string
}

type KMSConfig struct {
	Enabled bool
	KeyID   string
	Region  string
}

// CSRFConfig governs the token manager.
type CSRFConfig struct {
	TokenTTL      time.Duration
	SweepInterval time.Duration
}

// RateLimitConfig carries the per-action limits. The legacy endpoint family
// uses the Redis fixed window, the v1 family the MySQL event log.
type RateLimitConfig struct {
	TokenIssueMax      int
	TokenIssueWindow   time.Duration
	CommentPostMax     int
	CommentPostWindow  time.Duration
	CommentGetMax      int
	CommentGetWindow   time.Duration
	APIReadMax         int
	APIReadWindow      time.Duration
	APIWriteMax        int
	APIWriteWindow     time.Duration
	APIUpdateMax       int
	APIUpdateWindow    time.Duration
	EventSweepInterval time.Duration
}

// AdminConfig holds the bearer stub. TokenDigest is the encoded argon2id
// digest ($argon2id$...) of the accepted admin token.
type AdminConfig struct {
	TokenDigest string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads .env (development convenience) and the process environment
// and returns the assembled configuration.
func LoadConfig() *Config {
	// Missing .env is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			TLSPort:        getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:      getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:       getEnvBool("SERVER_AUTOCERT", false),
			AutoCertDir:    getEnv("SERVER_AUTOCERT_DIR", "./certs"),
			Domain:         getEnv("SERVER_DOMAIN", "radioadamowo.pl"),
			Email:          getEnv("SERVER_ACME_EMAIL", ""),
			CertFile:       getEnv("SERVER_CERT_FILE", ""),
			KeyFile:        getEnv("SERVER_KEY_FILE", ""),
			ReadTimeout:    getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:4000", "https://radioadamowo.pl"}),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("DB_DSN", ""),
			Host:            getEnv("DB_HOST", "127.0.0.1"),
			Port:            getEnvInt("DB_PORT", 3306),
			Database:        getEnv("DB_NAME", "radio_adamowo"),
			Username:        getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASS", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", false),
			Brokers:    getEnvList("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "radio-security-events"),
			AuditGroup: getEnv("KAFKA_AUDIT_GROUP", "radio-api-archiver"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getEnvBool("CLICKHOUSE_ENABLED", false),
			URL:      getEnv("CLICKHOUSE_URL", "http://127.0.0.1:8123"),
			Database: getEnv("CLICKHOUSE_DB", "radio_analytics"),
			Username: getEnv("CLICKHOUSE_USER", "default"),
			Password: getEnv("CLICKHOUSE_PASS", ""),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:      getEnvBool("ELASTICSEARCH_ENABLED", false),
			URL:          getEnv("ELASTICSEARCH_URL", "http://127.0.0.1:9200"),
			Username:     getEnv("ELASTICSEARCH_USER", ""),
			Password:     getEnv("ELASTICSEARCH_PASS", ""),
			CommentIndex: getEnv("ELASTICSEARCH_COMMENT_INDEX", "radio-comments"),
		},
		KMS: KMSConfig{
			Enabled: getEnvBool("KMS_ENABLED", false),
			KeyID:   getEnv("KMS_KEY_ID", ""),
			Region:  getEnv("AWS_REGION", "eu-central-1"),
		},
		CSRF: CSRFConfig{
			TokenTTL:      getEnvDuration("CSRF_TOKEN_TTL", 30*time.Minute),
			SweepInterval: getEnvDuration("CSRF_SWEEP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			TokenIssueMax:      getEnvInt("RL_TOKEN_ISSUE_MAX", 10),
			TokenIssueWindow:   getEnvDuration("RL_TOKEN_ISSUE_WINDOW", time.Minute),
			CommentPostMax:     getEnvInt("RL_COMMENT_POST_MAX", 5),
			CommentPostWindow:  getEnvDuration("RL_COMMENT_POST_WINDOW", 10*time.Minute),
			CommentGetMax:      getEnvInt("RL_COMMENT_GET_MAX", 60),
			CommentGetWindow:   getEnvDuration("RL_COMMENT_GET_WINDOW", time.Minute),
			APIReadMax:         getEnvInt("RL_API_READ_MAX", 100),
			APIReadWindow:      getEnvDuration("RL_API_READ_WINDOW", time.Minute),
			APIWriteMax:        getEnvInt("RL_API_WRITE_MAX", 10),
			APIWriteWindow:     getEnvDuration("RL_API_WRITE_WINDOW", time.Minute),
			APIUpdateMax:       getEnvInt("RL_API_UPDATE_MAX", 20),
			APIUpdateWindow:    getEnvDuration("RL_API_UPDATE_WINDOW", time.Minute),
			EventSweepInterval: getEnvDuration("RL_EVENT_SWEEP_INTERVAL", 10*time.Minute),
		},
		Admin: AdminConfig{
			TokenDigest: getEnv("ADMIN_TOKEN_DIGEST", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetDSN builds the go-sql-driver DSN unless one was supplied verbatim.
func (m *MySQLConfig) GetDSN() string {
	if m.DSN != "" {
		return m.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		m.Username, m.Password, m.Host, m.Port, m.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
