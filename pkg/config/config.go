package config

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"wallet-psbt/pkg/validator"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Node        NodeConfig       `mapstructure:"node"`
	Credentials CredentialConfig `mapstructure:"credentials"`
	MQ          MQConfig         `mapstructure:"mq"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Kafka       KafkaConfig      `mapstructure:"kafka"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port" validate:"required,numeric"`
	GrpcPort string `mapstructure:"grpc_port" validate:"omitempty,numeric"`
}

// NodeConfig 节点 JSON-RPC 连接参数
type NodeConfig struct {
	Host           string        `mapstructure:"host" validate:"required"`
	Port           int           `mapstructure:"port" validate:"gte=1,lte=65535"`
	Wallet         string        `mapstructure:"wallet"`
	Network        string        `mapstructure:"network" validate:"oneof=mainnet testnet regtest signet"`
	User           string        `mapstructure:"user"`     // 无凭证文件时使用
	Password       string        `mapstructure:"password"` // 同上，建议通过 NODE_PASSWORD 注入
	CallTimeout    time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

// CredentialConfig 加密凭证文件
type CredentialConfig struct {
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"` // CREDENTIALS_PASSPHRASE
}

type MQConfig struct {
	Type  string `mapstructure:"type" validate:"oneof=none redis kafka"`
	Topic string `mapstructure:"topic"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

var Global Config

// kafka topic 只允许 [a-zA-Z0-9._-]，最长 249
var kafkaTopicPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,249}$`)

func Init() {
	v := viper.GetViper()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	v.AddConfigPath(".")      // optionally look for config in the working directory
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	Global = cfg

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

// Load 在 v 上应用默认值与环境变量后解码并校验配置
func Load(v *viper.Viper) (Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.MQ.Type == "kafka" {
		if len(cfg.Kafka.Brokers) == 0 {
			return Config{}, fmt.Errorf("kafka.brokers is required when mq.type is kafka")
		}
		if !kafkaTopicPattern.MatchString(cfg.MQ.Topic) {
			return Config{}, fmt.Errorf("mq.topic %q is not a valid kafka topic name", cfg.MQ.Topic)
		}
	}
	if cfg.MQ.Type == "redis" && cfg.MQ.Topic == "" {
		return Config{}, fmt.Errorf("mq.topic is required when mq.type is redis")
	}
	if err := validator.Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.http_port", "8080")
	v.SetDefault("app.grpc_port", "50051")

	v.SetDefault("node.host", "127.0.0.1")
	v.SetDefault("node.port", 18443)
	v.SetDefault("node.wallet", "")
	v.SetDefault("node.network", "regtest")
	v.SetDefault("node.user", "")
	v.SetDefault("node.password", "")
	v.SetDefault("node.call_timeout", 30*time.Second)
	v.SetDefault("node.health_interval", 30*time.Second)

	v.SetDefault("credentials.path", "credentials.json")
	v.SetDefault("credentials.passphrase", "")

	v.SetDefault("mq.type", "none")
	v.SetDefault("mq.topic", "wallet.events.psbt")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
}
