package config

import (
	"fmt"
	"strings"

	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/transport"
)

// Role 是进程以何种身份运行。
type Role string

const (
	RoleServer Role = "server"
	RoleCache  Role = "cache"
	RoleClient Role = "client"
)

// ParseRole 解析命令行第一个位置参数。
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleServer, RoleCache, RoleClient:
		return role, nil
	default:
		return "", fmt.Errorf("未知角色 %q，仅支持 server|cache|client", raw)
	}
}

// SNWPolicy 把 Transfer 分节转换为停等协议策略。
func (c *Config) SNWPolicy() snw.Policy {
	t := c.Transfer
	return snw.Policy{
		Attempts:    t.Attempts,
		AckTimeout:  t.AckTimeout.DurationValue(),
		RetryDelay:  t.RetryDelay.DurationValue(),
		ChunkSize:   t.ChunkSize,
		IdleTimeout: t.IdleTimeout.DurationValue(),
	}
}

// OriginEndpoint 返回缓存回源的地址。
func (c *Config) OriginEndpoint() transport.Endpoint {
	return transport.Endpoint{Host: c.Cache.OriginHost, Port: c.Cache.OriginPort}
}

// ServerEndpoint 返回客户端 put 的目标地址。
func (c *Config) ServerEndpoint() transport.Endpoint {
	return transport.Endpoint{Host: c.Client.ServerHost, Port: c.Client.ServerPort}
}

// CacheEndpoint 返回客户端 get 的目标地址。
func (c *Config) CacheEndpoint() transport.Endpoint {
	return transport.Endpoint{Host: c.Client.CacheHost, Port: c.Client.CachePort}
}

// StoragePath 返回角色的本地目录。
func (c *Config) StoragePath(role Role) string {
	switch role {
	case RoleServer:
		return c.Server.StoragePath
	case RoleCache:
		return c.Cache.StoragePath
	case RoleClient:
		return c.Client.StoragePath
	}
	return ""
}
