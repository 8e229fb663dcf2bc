package config

import (
	"errors"
	"log"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

var Cfg Config

type Config struct {
	// 服务配置
	ServerPort  string `env:"SERVER_PORT" envDefault:"8888"`
	ServerHost  string `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	ServiceName string `env:"SERVICE_NAME" envDefault:"contactbook"`

	// 数据库驱动：postgres 或 sqlite（本地开发）
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"contactbook.db"`

	// PostgreSQL 配置
	PostgreSQLHost     string `env:"POSTGRESQL_HOST" envDefault:"localhost"`
	PostgreSQLPort     string `env:"POSTGRESQL_PORT" envDefault:"5432"`
	PostgreSQLUser     string `env:"POSTGRESQL_USER" envDefault:"postgres"`
	PostgreSQLPassword string `env:"POSTGRESQL_PASSWORD" envDefault:"postgres"`
	PostgreSQLDatabase string `env:"POSTGRESQL_DATABASE" envDefault:"contactbook"`
	PostgreSQLSchema   string `env:"POSTGRESQL_SCHEMA" envDefault:"public"`
	PostgreSQLSSLMode  string `env:"POSTGRESQL_SSLMODE" envDefault:"disable"`
	PostgreSQLMaxIdle  int    `env:"POSTGRESQL_MAX_IDLE" envDefault:"30"`
	PostgreSQLMaxOpen  int    `env:"POSTGRESQL_MAX_OPEN" envDefault:"200"`
	// 只读副本 host 列表，逗号分隔，复用主库的端口和账号
	PostgreSQLReplicas []string `env:"POSTGRESQL_REPLICAS" envSeparator:","`

	// Redis 配置
	RedisEnabled  bool   `env:"REDIS_ENABLED" envDefault:"true"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"cbook"`

	// RabbitMQ 配置
	EventsEnabled         bool   `env:"EVENTS_ENABLED" envDefault:"false"`
	RabbitMQAddr          string `env:"RABBITMQ_ADDR" envDefault:"localhost"`
	RabbitMQPort          string `env:"RABBITMQ_PORT" envDefault:"5672"`
	RabbitMQUsername      string `env:"RABBITMQ_USERNAME" envDefault:"guest"`
	RabbitMQPassword      string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
	RabbitMQVhost         string `env:"RABBITMQ_VHOST" envDefault:"/"`
	ContactEventsExchange string `env:"CONTACT_EVENTS_EXCHANGE" envDefault:"contacts.events"`

	// JWT 配置，签发由账号服务负责，这里只校验
	JWTSecret        string `env:"JWT_SECRET"`
	JWTExpireMinutes int    `env:"JWT_EXPIRE_MINUTES" envDefault:"30"`

	// Snowflake ID 生成器配置
	SnowflakeMachineID  int64 `env:"SNOWFLAKE_MACHINE_ID" envDefault:"1"`
	SnowflakeDataCenter int64 `env:"SNOWFLAKE_DATACENTER_ID" envDefault:"1"`

	// 日志配置
	LoggerLevel      string `env:"LOGGER_LEVEL" envDefault:"INFO"`
	LoggerFormat     string `env:"LOGGER_FORMAT" envDefault:"text"` // json, text
	LoggerOutputPath string `env:"LOGGER_OUTPUT_PATH" envDefault:"stdout"`

	// 链路追踪配置
	OTelEnabled     bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"0.1"`

	// 速率限制配置, 配置在中间件内
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"100"` // 每秒请求数
	// 超限后封禁的秒数，0 表示只按窗口拒绝
	RateLimitBlockSeconds int `env:"RATE_LIMIT_BLOCK_SECONDS" envDefault:"0"`

	// 联系人配置
	OwnerCacheTTLSeconds     int  `env:"OWNER_CACHE_TTL_SECONDS" envDefault:"600"`
	ContactUpdateVerifyOwner bool `env:"CONTACT_UPDATE_VERIFY_OWNER" envDefault:"false"`
}

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("WARN: Cannot load .env file: %v, using environment variables", err)
	}

	Cfg = Config{}
	if err := env.Parse(&Cfg); err != nil {
		log.Fatalf("Failed to parse environment variables: %v", err)
	}
}

// Validate 检查启动必需的配置，由 cmd 入口调用
func Validate() error {
	if Cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	switch Cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return errors.New("DATABASE_DRIVER must be postgres or sqlite")
	}

	if Cfg.SnowflakeMachineID < 0 || Cfg.SnowflakeMachineID > 31 {
		return errors.New("SNOWFLAKE_MACHINE_ID must be within 0-31")
	}

	if !Cfg.RedisEnabled && Cfg.RateLimitEnabled {
		log.Printf("WARN: RATE_LIMIT_ENABLED requires Redis, rate limiting will be skipped")
	}

	if Cfg.ContactUpdateVerifyOwner {
		log.Printf("INFO: CONTACT_UPDATE_VERIFY_OWNER enabled, updates re-check the stored owner")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return c.dsnForHost(c.PostgreSQLHost)
}

// GetReplicaDSNs 返回只读副本的 DSN 列表
func (c *Config) GetReplicaDSNs() []string {
	dsns := make([]string, 0, len(c.PostgreSQLReplicas))
	for _, host := range c.PostgreSQLReplicas {
		host = strings.TrimSpace(host)
		if host == "" {
			continue
		}
		dsns = append(dsns, c.dsnForHost(host))
	}
	return dsns
}

func (c *Config) dsnForHost(host string) string {
	return "host=" + host +
		" port=" + c.PostgreSQLPort +
		" user=" + c.PostgreSQLUser +
		" password=" + c.PostgreSQLPassword +
		" dbname=" + c.PostgreSQLDatabase +
		" sslmode=" + c.PostgreSQLSSLMode +
		" search_path=" + c.PostgreSQLSchema
}

func (c *Config) GetRabbitMQURL() string {
	return "amqp://" + c.RabbitMQUsername + ":" + c.RabbitMQPassword + "@" + c.RabbitMQAddr + ":" + c.RabbitMQPort + c.RabbitMQVhost
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
