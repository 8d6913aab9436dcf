package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "1s"、"500ms" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述三个角色共享的运行时行为。
type GlobalConfig struct {
	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
	Protocol      string `mapstructure:"Protocol"`
	// MaxConcurrent 限制同时处理的控制连接数，1 即逐个处理。
	MaxConcurrent int `mapstructure:"MaxConcurrent"`
}

// TransferConfig 是停等协议的重试策略与控制通道超时。
type TransferConfig struct {
	Attempts   int      `mapstructure:"Attempts"`
	AckTimeout Duration `mapstructure:"AckTimeout"`
	RetryDelay Duration `mapstructure:"RetryDelay"`
	ChunkSize  int      `mapstructure:"ChunkSize"`
	// IdleTimeout 为 0 时由重试预算推导。
	IdleTimeout    Duration `mapstructure:"IdleTimeout"`
	DialTimeout    Duration `mapstructure:"DialTimeout"`
	CommandTimeout Duration `mapstructure:"CommandTimeout"`
}

// ServerConfig 对应源站角色。
type ServerConfig struct {
	ListenPort      int    `mapstructure:"ListenPort"`
	StoragePath     string `mapstructure:"StoragePath"`
	DiagnosticsPort int    `mapstructure:"DiagnosticsPort"`
	ReplyPort       int    `mapstructure:"ReplyPort"`
}

// CacheConfig 对应回源缓存角色。
type CacheConfig struct {
	ListenPort      int    `mapstructure:"ListenPort"`
	StoragePath     string `mapstructure:"StoragePath"`
	OriginHost      string `mapstructure:"OriginHost"`
	OriginPort      int    `mapstructure:"OriginPort"`
	DiagnosticsPort int    `mapstructure:"DiagnosticsPort"`
	ReplyPort       int    `mapstructure:"ReplyPort"`
	DataPort        int    `mapstructure:"DataPort"`
}

// ClientConfig 对应交互式客户端。
type ClientConfig struct {
	ServerHost  string `mapstructure:"ServerHost"`
	ServerPort  int    `mapstructure:"ServerPort"`
	CacheHost   string `mapstructure:"CacheHost"`
	CachePort   int    `mapstructure:"CachePort"`
	StoragePath string `mapstructure:"StoragePath"`
	DataPort    int    `mapstructure:"DataPort"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global   GlobalConfig   `mapstructure:",squash"`
	Transfer TransferConfig `mapstructure:"Transfer"`
	Server   ServerConfig   `mapstructure:"Server"`
	Cache    CacheConfig    `mapstructure:"Cache"`
	Client   ClientConfig   `mapstructure:"Client"`
}
