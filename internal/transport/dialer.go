package transport

import (
	"net"
	"time"
)

// DefaultDialTimeout 是控制连接的默认拨号超时。
const DefaultDialTimeout = 5 * time.Second

var aLongTimeAgo = time.Unix(1, 0)

// NewDialer 返回控制连接使用的拨号器，timeout<=0 时取默认值。
func NewDialer(timeout time.Duration) *net.Dialer {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
}

// hostIP 提取地址中的 IP，非 IP 地址返回 nil。
func hostIP(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}

// hostPort 提取地址中的端口，无法解析时返回 0。
func hostPort(addr net.Addr) int {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.Port
	case *net.UDPAddr:
		return a.Port
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0
	}
	p, _ := net.LookupPort("tcp", port)
	return p
}
