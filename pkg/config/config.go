package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	MongoDB   MongoDBConfig   `mapstructure:"mongodb"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Chat      ChatConfig      `mapstructure:"chat"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name      string `mapstructure:"name"`
	Version   string `mapstructure:"version"`
	LogLevel  string `mapstructure:"log_level"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
	GRPC GRPCConfig `mapstructure:"grpc"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Addr    string        `mapstructure:"addr"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GRPCConfig gRPC服务配置（仅健康检查）
type GRPCConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"` // 单次调用超时，超时按存储不可用处理
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// MongoDBConfig MongoDB配置
type MongoDBConfig struct {
	URI    string `mapstructure:"uri"`
	DBName string `mapstructure:"db_name"`
}

// TelemetryConfig 链路追踪配置
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Exporter   string  `mapstructure:"exporter"`
	SampleRate float64 `mapstructure:"sample_rate"`
}

// ChatConfig 聊天业务配置
type ChatConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length"`
	DefaultPageSize  int `mapstructure:"default_page_size"`
	MaxPageSize      int `mapstructure:"max_page_size"`
}

// 服务默认端口
var defaultPorts = map[string][2]string{
	"chat-service":    {"21010", "22010"},
	"archive-service": {"21011", "22011"},
}

// LoadConfig 加载配置：默认值 < config.yaml < 环境变量
func LoadConfig(serviceName string) (*Config, error) {
	ports, ok := defaultPorts[serviceName]
	if !ok {
		return nil, fmt.Errorf("unknown service name: %s", serviceName)
	}

	v := viper.New()
	setDefaults(v, serviceName, ports)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../..")

	// REDIS_ADDR -> redis.addr
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, serviceName string, ports [2]string) {
	v.SetDefault("app.name", serviceName)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.jwt_secret", "focusandinsist")

	v.SetDefault("server.http.addr", ":"+ports[0])
	v.SetDefault("server.http.timeout", "30s")
	v.SetDefault("server.grpc.enabled", true)
	v.SetDefault("server.grpc.addr", ":"+ports[1])

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.timeout", "3s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "chat-events")
	v.SetDefault("kafka.group_id", serviceName+"-group")

	v.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb.db_name", "chat_archive")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("chat.max_message_length", 2000)
	v.SetDefault("chat.default_page_size", 50)
	v.SetDefault("chat.max_page_size", 200)
}

// bindLegacyEnv 兼容部署脚本里的短环境变量名
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.http.addr", "HTTP_ADDR")
	_ = v.BindEnv("server.grpc.addr", "GRPC_ADDR")
	_ = v.BindEnv("app.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("app.log_level", "LOG_LEVEL")
	_ = v.BindEnv("mongodb.uri", "MONGODB_URI")
	_ = v.BindEnv("mongodb.db_name", "MONGODB_DB")
}
