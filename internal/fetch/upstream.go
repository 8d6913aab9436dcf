package fetch

import (
	"context"

	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/transport"
)

// Upstream 通过指定协议访问固定的源站地址。
type Upstream struct {
	protocol transport.Protocol
	endpoint transport.Endpoint
}

var _ Origin = (*Upstream)(nil)

// NewUpstream 把一个协议实例绑定到源站地址上。
func NewUpstream(protocol transport.Protocol, endpoint transport.Endpoint) *Upstream {
	return &Upstream{protocol: protocol, endpoint: endpoint}
}

// Forward 向源站发送请求行，数据报协议下会先绑定好接收端口。
func (u *Upstream) Forward(ctx context.Context, cmd command.Command) (transport.Exchange, error) {
	return u.protocol.Request(ctx, u.endpoint, cmd)
}

// Endpoint 返回源站地址。
func (u *Upstream) Endpoint() transport.Endpoint {
	return u.endpoint
}
