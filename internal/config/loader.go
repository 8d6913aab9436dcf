package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix 是覆盖配置项的环境变量前缀，例如 SNW_HUB_TRANSFER_ACKTIMEOUT=2s。
	EnvPrefix = "SNW_HUB"

	defaultConfigFile = "config.toml"
)

// Load 读取 TOML 配置并叠加环境变量，同时注入默认值与全局校验。
// path 为空且当前目录不存在 config.toml 时只使用默认值。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("配置文件不存在: %s", path)
			}
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("Protocol", "tcp")
	v.SetDefault("MaxConcurrent", 1)

	v.SetDefault("Transfer.Attempts", 3)
	v.SetDefault("Transfer.AckTimeout", "1s")
	v.SetDefault("Transfer.RetryDelay", "5s")
	v.SetDefault("Transfer.ChunkSize", 1000)
	v.SetDefault("Transfer.IdleTimeout", "0s")
	v.SetDefault("Transfer.DialTimeout", "5s")
	v.SetDefault("Transfer.CommandTimeout", "10s")

	v.SetDefault("Server.ListenPort", 5001)
	v.SetDefault("Server.StoragePath", "server_fl")
	v.SetDefault("Server.DiagnosticsPort", 0)
	v.SetDefault("Server.ReplyPort", 0)

	v.SetDefault("Cache.ListenPort", 5002)
	v.SetDefault("Cache.StoragePath", "cache_fl")
	v.SetDefault("Cache.OriginHost", "127.0.0.1")
	v.SetDefault("Cache.OriginPort", 5001)
	v.SetDefault("Cache.DiagnosticsPort", 0)
	v.SetDefault("Cache.ReplyPort", 0)
	v.SetDefault("Cache.DataPort", 0)

	v.SetDefault("Client.ServerHost", "127.0.0.1")
	v.SetDefault("Client.ServerPort", 5001)
	v.SetDefault("Client.CacheHost", "127.0.0.1")
	v.SetDefault("Client.CachePort", 5002)
	v.SetDefault("Client.StoragePath", "client_fl")
	v.SetDefault("Client.DataPort", 0)
}

// applyDefaults 只补齐零值；RetryDelay 允许显式写 0 关闭停顿。
func applyDefaults(c *Config) {
	c.Global.Protocol = strings.ToLower(strings.TrimSpace(c.Global.Protocol))
	if c.Global.Protocol == "" {
		c.Global.Protocol = "tcp"
	}
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = "info"
	}
	if c.Global.MaxConcurrent == 0 {
		c.Global.MaxConcurrent = 1
	}

	t := &c.Transfer
	if t.Attempts == 0 {
		t.Attempts = 3
	}
	if t.AckTimeout.DurationValue() == 0 {
		t.AckTimeout = Duration(time.Second)
	}
	if t.ChunkSize == 0 {
		t.ChunkSize = 1000
	}
	if t.DialTimeout.DurationValue() == 0 {
		t.DialTimeout = Duration(5 * time.Second)
	}
	if t.CommandTimeout.DurationValue() == 0 {
		t.CommandTimeout = Duration(10 * time.Second)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
