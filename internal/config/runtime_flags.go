package config

import (
	"fmt"
	"strconv"
	"strings"
)

// 角色位置参数与原有命令行保持一致：
//
//	server <port> <protocol>
//	cache  <port> <origin-host> <origin-port> <protocol>
//	client <server-host> <server-port> <cache-host> <cache-port> <protocol>
//
// 不带参数时沿用配置文件与环境变量；带参数时必须写全。
var roleArgNames = map[Role][]string{
	RoleServer: {"port", "protocol"},
	RoleCache:  {"port", "origin-host", "origin-port", "protocol"},
	RoleClient: {"server-host", "server-port", "cache-host", "cache-port", "protocol"},
}

// RoleUsage 返回角色的位置参数说明。
func RoleUsage(role Role) string {
	names := roleArgNames[role]
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "<" + name + ">"
	}
	return strings.TrimSpace(string(role) + " " + strings.Join(parts, " "))
}

// ApplyRoleArgs 用位置参数覆盖对应角色的配置项，随后重新校验。
func (c *Config) ApplyRoleArgs(role Role, args []string) error {
	names, ok := roleArgNames[role]
	if !ok {
		return fmt.Errorf("未知角色: %s", role)
	}
	if len(args) == 0 {
		return nil
	}
	if len(args) != len(names) {
		return fmt.Errorf("参数数量不正确，用法: %s", RoleUsage(role))
	}

	ports := make(map[int]int)
	for i, name := range names {
		if strings.HasSuffix(name, "port") {
			port, err := strconv.Atoi(args[i])
			if err != nil || port <= 0 || port > 65535 {
				return newFieldError(argField(role, i, name), "必须是 1-65535 的端口号")
			}
			ports[i] = port
		}
	}
	protocol := strings.ToLower(strings.TrimSpace(args[len(args)-1]))
	if !protocolSupported(protocol) {
		return newFieldError(argField(role, len(args)-1, "protocol"), "仅支持 "+supportedProtocolList())
	}
	c.Global.Protocol = protocol

	switch role {
	case RoleServer:
		c.Server.ListenPort = ports[0]
	case RoleCache:
		c.Cache.ListenPort = ports[0]
		c.Cache.OriginHost = args[1]
		c.Cache.OriginPort = ports[2]
	case RoleClient:
		c.Client.ServerHost = args[0]
		c.Client.ServerPort = ports[1]
		c.Client.CacheHost = args[2]
		c.Client.CachePort = ports[3]
	}
	return c.ValidateRole(role)
}
