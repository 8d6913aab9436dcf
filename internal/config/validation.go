package config

import (
	"errors"
	"fmt"
	"strings"
)

const maxChunkSize = 65507

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if !protocolSupported(g.Protocol) {
		return newFieldError("Global.Protocol", "仅支持 "+supportedProtocolList())
	}
	if g.MaxConcurrent < 1 {
		return newFieldError("Global.MaxConcurrent", "必须大于 0")
	}
	if g.LogMaxSize < 0 || g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxSize/LogMaxBackups", "不能为负数")
	}

	t := c.Transfer
	if t.Attempts < 1 {
		return newFieldError("Transfer.Attempts", "至少为 1")
	}
	if t.AckTimeout.DurationValue() <= 0 {
		return newFieldError("Transfer.AckTimeout", "必须大于 0")
	}
	if t.RetryDelay.DurationValue() < 0 {
		return newFieldError("Transfer.RetryDelay", "不能为负数")
	}
	if t.ChunkSize < 1 || t.ChunkSize > maxChunkSize {
		return newFieldError("Transfer.ChunkSize", fmt.Sprintf("必须在 1-%d", maxChunkSize))
	}
	if t.IdleTimeout.DurationValue() < 0 {
		return newFieldError("Transfer.IdleTimeout", "不能为负数")
	}
	if t.DialTimeout.DurationValue() <= 0 {
		return newFieldError("Transfer.DialTimeout", "必须大于 0")
	}
	if t.CommandTimeout.DurationValue() <= 0 {
		return newFieldError("Transfer.CommandTimeout", "必须大于 0")
	}
	return nil
}

// ValidateRole 校验指定角色实际会用到的分节。
func (c *Config) ValidateRole(role Role) error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch role {
	case RoleServer:
		s := c.Server
		if err := validatePort("Server", "ListenPort", s.ListenPort); err != nil {
			return err
		}
		if err := validateOptionalPort("Server", "DiagnosticsPort", s.DiagnosticsPort); err != nil {
			return err
		}
		if err := validateOptionalPort("Server", "ReplyPort", s.ReplyPort); err != nil {
			return err
		}
		return validateStorage("Server", s.StoragePath)
	case RoleCache:
		s := c.Cache
		if err := validatePort("Cache", "ListenPort", s.ListenPort); err != nil {
			return err
		}
		if err := validateHost("Cache", "OriginHost", s.OriginHost); err != nil {
			return err
		}
		if err := validatePort("Cache", "OriginPort", s.OriginPort); err != nil {
			return err
		}
		for field, port := range map[string]int{"DiagnosticsPort": s.DiagnosticsPort, "ReplyPort": s.ReplyPort, "DataPort": s.DataPort} {
			if err := validateOptionalPort("Cache", field, port); err != nil {
				return err
			}
		}
		return validateStorage("Cache", s.StoragePath)
	case RoleClient:
		s := c.Client
		if err := validateHost("Client", "ServerHost", s.ServerHost); err != nil {
			return err
		}
		if err := validatePort("Client", "ServerPort", s.ServerPort); err != nil {
			return err
		}
		if err := validateHost("Client", "CacheHost", s.CacheHost); err != nil {
			return err
		}
		if err := validatePort("Client", "CachePort", s.CachePort); err != nil {
			return err
		}
		if err := validateOptionalPort("Client", "DataPort", s.DataPort); err != nil {
			return err
		}
		return validateStorage("Client", s.StoragePath)
	default:
		return fmt.Errorf("未知角色: %s", role)
	}
}

func validatePort(section, field string, port int) error {
	if port <= 0 || port > 65535 {
		return newFieldError(sectionField(section, field), "必须在 1-65535")
	}
	return nil
}

// 0 表示沿用默认推导规则。
func validateOptionalPort(section, field string, port int) error {
	if port == 0 {
		return nil
	}
	return validatePort(section, field, port)
}

func validateHost(section, field, host string) error {
	host = strings.TrimSpace(host)
	if host == "" {
		return newFieldError(sectionField(section, field), "不能为空")
	}
	if strings.ContainsAny(host, "/ ") {
		return newFieldError(sectionField(section, field), "不允许包含路径或空格")
	}
	return nil
}

func validateStorage(section, path string) error {
	if strings.TrimSpace(path) == "" {
		return newFieldError(sectionField(section, "StoragePath"), "不能为空")
	}
	return nil
}
