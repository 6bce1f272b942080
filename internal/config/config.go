// Package config 提供抽奖服务配置加载
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	Service  ServiceConfig  `yaml:"service" json:"service"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka"`
	Chain    ChainConfig    `yaml:"chain" json:"chain"`
	Raffle   RaffleConfig   `yaml:"raffle" json:"raffle"`
	Worker   WorkerConfig   `yaml:"worker" json:"worker"`
	Node     NodeConfig     `yaml:"node" json:"node"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// ServiceConfig 服务配置
type ServiceConfig struct {
	Name     string `yaml:"name" json:"name"`
	HTTPPort int    `yaml:"http_port" json:"http_port"`
	Env      string `yaml:"env" json:"env"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host                   string `yaml:"host" json:"host"`
	Port                   int    `yaml:"port" json:"port"`
	User                   string `yaml:"user" json:"user"`
	Password               string `yaml:"password" json:"password"`
	Database               string `yaml:"database" json:"database"`
	MaxIdleConns           int    `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns           int    `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" json:"conn_max_lifetime_minutes"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	PoolSize int    `yaml:"pool_size" json:"pool_size"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	Enabled  bool           `yaml:"enabled" json:"enabled"`
	Brokers  []string       `yaml:"brokers" json:"brokers"`
	GroupID  string         `yaml:"group_id" json:"group_id"`
	Producer ProducerConfig `yaml:"producer" json:"producer"`
	Consumer ConsumerConfig `yaml:"consumer" json:"consumer"`
}

// ProducerConfig Kafka 生产者配置
type ProducerConfig struct {
	RequiredAcks  int `yaml:"required_acks" json:"required_acks"`   // 0=NoResponse, 1=WaitForLocal, -1=WaitForAll
	MaxRetry      int `yaml:"max_retry" json:"max_retry"`           // 最大重试次数
	FlushMessages int `yaml:"flush_messages" json:"flush_messages"` // 批量发送消息数
	FlushBytes    int `yaml:"flush_bytes" json:"flush_bytes"`       // 批量发送字节数
	FlushFreqMs   int `yaml:"flush_freq_ms" json:"flush_freq_ms"`   // 批量发送间隔 (毫秒)
}

// ConsumerConfig Kafka 消费者配置
type ConsumerConfig struct {
	InitialOffset string `yaml:"initial_offset" json:"initial_offset"` // newest, oldest
}

// ChainConfig 链上交互配置
type ChainConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	RPCURL         string `yaml:"rpc_url" json:"rpc_url"`
	ChainID        int64  `yaml:"chain_id" json:"chain_id"`
	EscrowContract string `yaml:"escrow_contract" json:"escrow_contract"`
	VRFCoordinator string `yaml:"vrf_coordinator" json:"vrf_coordinator"`
	PrivateKey     string `yaml:"private_key" json:"private_key"` // 只允许通过环境变量注入
}

// RaffleConfig 抽奖业务配置
type RaffleConfig struct {
	// PlatformWallet 平台分成收款地址
	PlatformWallet string `yaml:"platform_wallet" json:"platform_wallet"`

	// Owner 平台所有者地址 (资金/押品手动提取权限)
	Owner string `yaml:"owner" json:"owner"`

	// Operators 运营地址列表 (赠票、重试开奖、紧急结算权限)
	Operators []string `yaml:"operators" json:"operators"`

	// LockExpirySec 抽奖互斥锁过期时间 (秒)
	LockExpirySec int `yaml:"lock_expiry_sec" json:"lock_expiry_sec"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	// Expiry 到期扫描 Worker 配置
	Expiry ExpiryConfig `yaml:"expiry" json:"expiry"`

	// StuckDraw 卡单监控配置
	StuckDraw StuckDrawConfig `yaml:"stuck_draw" json:"stuck_draw"`
}

// ExpiryConfig 到期扫描配置
type ExpiryConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	CheckIntervalSec int  `yaml:"check_interval_sec" json:"check_interval_sec"`
	BatchSize        int  `yaml:"batch_size" json:"batch_size"`
}

// StuckDrawConfig 卡单监控配置
type StuckDrawConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	CheckIntervalSec int  `yaml:"check_interval_sec" json:"check_interval_sec"`
	StuckAfterSec    int  `yaml:"stuck_after_sec" json:"stuck_after_sec"`
	BatchSize        int  `yaml:"batch_size" json:"batch_size"`
}

// NodeConfig 节点配置
type NodeConfig struct {
	ID int64 `yaml:"id" json:"id"` // 节点 ID (用于 Snowflake)
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := defaultConfig()

	// 尝试从配置文件加载
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// 从环境变量覆盖
	loadFromEnv(cfg)

	return cfg, nil
}

// defaultConfig 返回默认配置
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "windfall-raffle",
			HTTPPort: 8080,
			Env:      "dev",
		},
		Database: DatabaseConfig{
			Host:                   "localhost",
			Port:                   5432,
			User:                   "postgres",
			Password:               "postgres",
			Database:               "windfall_raffle",
			MaxIdleConns:           10,
			MaxOpenConns:           100,
			ConnMaxLifetimeMinutes: 30,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
			PoolSize: 100,
		},
		Kafka: KafkaConfig{
			Enabled: false, // 默认不启用 Kafka
			Brokers: []string{"localhost:9092"},
			GroupID: "windfall-raffle",
			Producer: ProducerConfig{
				RequiredAcks:  -1, // WaitForAll
				MaxRetry:      3,
				FlushMessages: 100,
				FlushBytes:    1024 * 1024, // 1MB
				FlushFreqMs:   10,
			},
			Consumer: ConsumerConfig{
				InitialOffset: "newest",
			},
		},
		Chain: ChainConfig{
			Enabled:        false, // 默认不启用链上交互，开发时用替身
			RPCURL:         "http://localhost:8545",
			ChainID:        31337,
			EscrowContract: "0x0000000000000000000000000000000000000000",
			VRFCoordinator: "0x0000000000000000000000000000000000000000",
		},
		Raffle: RaffleConfig{
			PlatformWallet: "0x0000000000000000000000000000000000000000",
			Owner:          "0x0000000000000000000000000000000000000000",
			Operators:      nil,
			LockExpirySec:  30,
		},
		Worker: WorkerConfig{
			Expiry: ExpiryConfig{
				Enabled:          true,
				CheckIntervalSec: 30,
				BatchSize:        100,
			},
			StuckDraw: StuckDrawConfig{
				Enabled:          true,
				CheckIntervalSec: 60,
				StuckAfterSec:    600,
				BatchSize:        100,
			},
		},
		Node: NodeConfig{
			ID: 1,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadFromEnv 从环境变量加载配置
func loadFromEnv(cfg *Config) {
	// 数据库配置
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if database := os.Getenv("DB_DATABASE"); database != "" {
		cfg.Database.Database = database
	}

	// Redis 配置
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	// Kafka 配置
	if enabled := os.Getenv("KAFKA_ENABLED"); enabled == "true" {
		cfg.Kafka.Enabled = true
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = []string{brokers}
	}
	if groupID := os.Getenv("KAFKA_GROUP_ID"); groupID != "" {
		cfg.Kafka.GroupID = groupID
	}

	// 链上交互配置
	if enabled := os.Getenv("CHAIN_ENABLED"); enabled == "true" {
		cfg.Chain.Enabled = true
	}
	if url := os.Getenv("CHAIN_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
	if key := os.Getenv("CHAIN_PRIVATE_KEY"); key != "" {
		cfg.Chain.PrivateKey = key
	}

	// 节点配置 (用于 Snowflake ID 生成，集群部署时每个实例需要不同的 NODE_ID)
	if nodeID := os.Getenv("NODE_ID"); nodeID != "" {
		if id, err := strconv.ParseInt(nodeID, 10, 64); err == nil {
			cfg.Node.ID = id
		}
	}
}
