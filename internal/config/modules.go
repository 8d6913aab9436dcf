package config

import (
	"strings"

	"github.com/any-hub/snw-hub/internal/transport"
)

// SupportedProtocols 返回已注册的传输协议键，用于校验与错误提示。
func SupportedProtocols() []string {
	return transport.Keys()
}

func protocolSupported(key string) bool {
	_, ok := transport.Resolve(key)
	return ok
}

func supportedProtocolList() string {
	return strings.Join(SupportedProtocols(), "|")
}
