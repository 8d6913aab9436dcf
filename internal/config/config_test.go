package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.Protocol != "snw" || cfg.Global.MaxConcurrent != 4 {
		t.Fatalf("全局字段解析错误: %+v", cfg.Global)
	}
	if cfg.Transfer.AckTimeout.DurationValue() != 500*time.Millisecond {
		t.Fatalf("AckTimeout 应解析为 500ms，得到 %v", cfg.Transfer.AckTimeout.DurationValue())
	}
	if cfg.Transfer.RetryDelay.DurationValue() != 2*time.Second {
		t.Fatalf("纯数字应按秒解析，得到 %v", cfg.Transfer.RetryDelay.DurationValue())
	}
	if cfg.Cache.OriginHost != "origin.local" || cfg.Cache.DiagnosticsPort != 9090 {
		t.Fatalf("Cache 分节解析错误: %+v", cfg.Cache)
	}
	// 未出现在文件中的键取默认值
	if cfg.Transfer.CommandTimeout.DurationValue() != 10*time.Second {
		t.Fatalf("CommandTimeout 应取默认值，得到 %v", cfg.Transfer.CommandTimeout.DurationValue())
	}
	if cfg.Client.StoragePath != "client_fl" {
		t.Fatalf("Client.StoragePath 应取默认值，得到 %q", cfg.Client.StoragePath)
	}
	for _, role := range []Role{RoleServer, RoleCache, RoleClient} {
		if err := cfg.ValidateRole(role); err != nil {
			t.Fatalf("role %s should validate: %v", role, err)
		}
	}
}

func TestSNWPolicyMapping(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	p := cfg.SNWPolicy()
	if p.Attempts != 5 || p.ChunkSize != 1200 || p.AckTimeout != 500*time.Millisecond || p.RetryDelay != 2*time.Second {
		t.Fatalf("unexpected policy: %+v", p)
	}
}

func TestValidateRejectsBadChunkSize(t *testing.T) {
	_, err := Load(testConfigPath(t, "invalid_chunk.toml"))
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) || fieldErr.Field != "Transfer.ChunkSize" {
		t.Fatalf("expected Transfer.ChunkSize field error, got %v", err)
	}
}

func TestValidateRoleChecks(t *testing.T) {
	testCases := []struct {
		name   string
		role   Role
		mutate func(*Config)
		field  string
	}{
		{"server port range", RoleServer, func(c *Config) { c.Server.ListenPort = 70000 }, "Server.ListenPort"},
		{"server storage", RoleServer, func(c *Config) { c.Server.StoragePath = " " }, "Server.StoragePath"},
		{"cache origin host", RoleCache, func(c *Config) { c.Cache.OriginHost = "" }, "Cache.OriginHost"},
		{"cache origin port", RoleCache, func(c *Config) { c.Cache.OriginPort = 0 }, "Cache.OriginPort"},
		{"cache data port", RoleCache, func(c *Config) { c.Cache.DataPort = -1 }, "Cache.DataPort"},
		{"client server host", RoleClient, func(c *Config) { c.Client.ServerHost = "http://x" }, "Client.ServerHost"},
		{"client cache port", RoleClient, func(c *Config) { c.Client.CachePort = 0 }, "Client.CachePort"},
		{"protocol", RoleServer, func(c *Config) { c.Global.Protocol = "quic" }, "Global.Protocol"},
		{"attempts", RoleClient, func(c *Config) { c.Transfer.Attempts = 0 }, "Transfer.Attempts"},
		{"negative retry delay", RoleCache, func(c *Config) { c.Transfer.RetryDelay = Duration(-time.Second) }, "Transfer.RetryDelay"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.ValidateRole(tc.role)
			var fieldErr FieldError
			if !errors.As(err, &fieldErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fieldErr.Field != tc.field {
				t.Fatalf("expected field %s, got %s", tc.field, fieldErr.Field)
			}
		})
	}
}

func TestValidateAllowsZeroRetryDelay(t *testing.T) {
	cfg := validConfig()
	cfg.Transfer.RetryDelay = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("显式 0 停顿应被允许: %v", err)
	}
	if cfg.SNWPolicy().RetryDelay != 0 {
		t.Fatalf("RetryDelay 应保持 0")
	}
}

func TestApplyRoleArgs(t *testing.T) {
	cfg := validConfig()
	if err := cfg.ApplyRoleArgs(RoleCache, []string{"7002", "10.0.0.5", "7001", "SNW"}); err != nil {
		t.Fatalf("ApplyRoleArgs: %v", err)
	}
	if cfg.Cache.ListenPort != 7002 || cfg.Cache.OriginHost != "10.0.0.5" || cfg.Cache.OriginPort != 7001 {
		t.Fatalf("cache args not applied: %+v", cfg.Cache)
	}
	if cfg.Global.Protocol != "snw" {
		t.Fatalf("协议名应转为小写，得到 %s", cfg.Global.Protocol)
	}
	if cfg.OriginEndpoint().Address() != "10.0.0.5:7001" {
		t.Fatalf("unexpected origin endpoint %s", cfg.OriginEndpoint())
	}

	client := validConfig()
	if err := client.ApplyRoleArgs(RoleClient, []string{"s.local", "7001", "c.local", "7002", "tcp"}); err != nil {
		t.Fatalf("ApplyRoleArgs client: %v", err)
	}
	if client.ServerEndpoint().Address() != "s.local:7001" || client.CacheEndpoint().Address() != "c.local:7002" {
		t.Fatalf("client endpoints not applied: %+v", client.Client)
	}

	server := validConfig()
	if err := server.ApplyRoleArgs(RoleServer, nil); err != nil {
		t.Fatalf("无参数时应沿用配置: %v", err)
	}
	if server.Server.ListenPort != 5001 {
		t.Fatalf("unexpected listen port %d", server.Server.ListenPort)
	}
}

func TestApplyRoleArgsErrors(t *testing.T) {
	testCases := []struct {
		name string
		role Role
		args []string
		want string
	}{
		{"wrong count", RoleServer, []string{"5001"}, "server <port> <protocol>"},
		{"bad port", RoleServer, []string{"abc", "tcp"}, "server args[0] (port)"},
		{"bad origin port", RoleCache, []string{"5002", "h", "99999", "tcp"}, "cache args[2] (origin-port)"},
		{"bad protocol", RoleClient, []string{"a", "1", "b", "2", "ftp"}, "client args[4] (protocol)"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validConfig().ApplyRoleArgs(tc.role, tc.args)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if role, err := ParseRole(" Cache "); err != nil || role != RoleCache {
		t.Fatalf("unexpected %s %v", role, err)
	}
	if _, err := ParseRole("proxy"); err == nil {
		t.Fatalf("unknown role should fail")
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			LogLevel:      "info",
			Protocol:      "tcp",
			MaxConcurrent: 1,
		},
		Transfer: TransferConfig{
			Attempts:       3,
			AckTimeout:     Duration(time.Second),
			RetryDelay:     Duration(5 * time.Second),
			ChunkSize:      1000,
			DialTimeout:    Duration(5 * time.Second),
			CommandTimeout: Duration(10 * time.Second),
		},
		Server: ServerConfig{ListenPort: 5001, StoragePath: "server_fl"},
		Cache:  CacheConfig{ListenPort: 5002, StoragePath: "cache_fl", OriginHost: "127.0.0.1", OriginPort: 5001},
		Client: ClientConfig{ServerHost: "127.0.0.1", ServerPort: 5001, CacheHost: "127.0.0.1", CachePort: 5002, StoragePath: "client_fl"},
	}
}
