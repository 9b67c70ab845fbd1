package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Config 应用配置。
type Config struct {
	Server    ServerConfig    `json:"server"`
	Consul    ConsulConfig    `json:"consul"`
	Jaeger    JaegerConfig    `json:"jaeger"`
	Auth      AuthConfig      `json:"auth"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Log       LogConfig       `json:"log"`
	Ledger    LedgerConfig    `json:"ledger"`
}

// ServerConfig 服务配置。
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 监听地址
	GRPCPort int    `json:"grpc_port"` // gRPC 端口（health / reflection）
	HTTPPort int    `json:"http_port"` // HTTP API 端口
}

// ConsulConfig Consul 配置。
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger 配置。
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// AuthConfig JWT 鉴权配置。
type AuthConfig struct {
	Enabled   bool   `json:"enabled"`
	JWTSecret string `json:"jwt_secret"` // HS256 密钥
	Issuer    string `json:"issuer"`
	Audience  string `json:"audience"`
	// PublicPaths 免鉴权的路径前缀（如 /healthz）。
	PublicPaths []string `json:"public_paths"`
	// RBAC: 路径前缀 -> 要求角色列表（任一命中即放行）。
	// 未配置的路径只鉴权不限权。
	RBAC map[string][]string `json:"rbac"`
}

// RateLimitConfig HTTP 入口限流配置（运行时防护，不是业务功能）。
type RateLimitConfig struct {
	Enabled  bool   `json:"enabled"`
	Strategy string `json:"strategy"` // token_bucket / sliding_window

	// token_bucket
	Capacity   int64 `json:"capacity"`
	RefillRate int64 `json:"refill_rate"` // 每秒补充令牌数

	// sliding_window
	WindowMillis int `json:"window_millis"`
	MaxRequests  int `json:"max_requests"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Driver string `json:"driver"` // logrus（默认）, zap
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

// LedgerConfig 台账配置。
type LedgerConfig struct {
	// WaitScaleMillis 延迟记账等待公式的缩放系数（毫秒）。
	// 0 表示使用默认值 3_600_000。
	WaitScaleMillis float64 `json:"wait_scale_millis"`
}

// LoadConfig 从 JSON 文件加载配置；文件不存在时回落到默认配置。
// 文件中缺省的字段保留默认值。
func LoadConfig(configPath string) (*Config, error) {
	cfg := defaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logrus.Warnf("Config file not found: %s, using default config", configPath)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// defaultConfig 默认配置（开发环境）。
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "odometer-service",
			Host:     "0.0.0.0",
			GRPCPort: 50051,
			HTTPPort: 8080,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Auth: AuthConfig{
			Enabled:     false,
			PublicPaths: []string{"/healthz"},
		},
		RateLimit: RateLimitConfig{
			Enabled:    false,
			Strategy:   "token_bucket",
			Capacity:   100,
			RefillRate: 50,
		},
		Log: LogConfig{
			Driver: "logrus",
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
		Ledger: LedgerConfig{
			WaitScaleMillis: 0,
		},
	}
}
