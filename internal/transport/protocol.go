// Package transport 把 put/get 请求绑定到具体的字节传输方式。
//
// 每种协议在 init() 中注册到全局表（tcp、snw），角色进程按配置的键构造一个实例，
// 然后注入到分发循环与回源逻辑中，进程内不存在共享的传输单例。
package transport

import (
	"context"
	"io"
	"net"
	"strconv"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/sirupsen/logrus"
)

// ErrNotFound 表示对端回复了未找到文本。
var ErrNotFound = stream.ErrNotFound

// Endpoint 是控制通道的对端地址。
type Endpoint struct {
	Host string
	Port int
}

// Address 返回 host:port 形式的地址。
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Address()
}

// Dialer 抽象控制连接的拨号，*net.Dialer 即满足该接口。
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options 汇总协议实例的运行期依赖。
type Options struct {
	Logger logrus.FieldLogger
	// SNW 为空时按默认策略构造停等传输。
	SNW    snw.Transferer
	Dialer Dialer
	// DataPort 是拉取文件时本地绑定的数据报端口，0 表示与对端控制端口相同。
	DataPort int
	// ReplyPort 是推送文件时对端的数据报端口，0 表示与本端控制端口相同。
	ReplyPort int
}

// Conn 是一条已读取请求行的控制连接。
type Conn struct {
	net.Conn
	ID      string
	Command command.Command
}

// Exchange 是一次已发出请求行、等待接收文件的拉取。
type Exchange interface {
	// Download 把文件写入 dst 并返回对端的 feedback 文本；对端未找到时返回 ErrNotFound。
	Download(ctx context.Context, dst io.Writer) (string, error)
	Close() error
}

// Responder 负责回复一次 get。
type Responder interface {
	Found(ctx context.Context, file *cache.ReadResult, feedback string) error
	NotFound(ctx context.Context) error
}

// Protocol 是一种传输方式在请求方与应答方两侧的全部操作。
type Protocol interface {
	Key() string
	// Request 拨号 endpoint，准备好接收通道后发送请求行。
	Request(ctx context.Context, endpoint Endpoint, cmd command.Command) (Exchange, error)
	// Send 发送 put 请求行并推送文件，返回对端的结果文本（可能为空）。
	Send(ctx context.Context, endpoint Endpoint, file snw.File) (string, error)
	// Reply 为已接受的控制连接构造 get 应答器。
	Reply(conn *Conn) Responder
	// Accept 在已读取 put 请求行的连接上接收文件并写入 store。
	Accept(ctx context.Context, conn *Conn, store cache.Store) (*cache.Entry, error)
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	return discard
}

func (o Options) dialer() Dialer {
	if o.Dialer != nil {
		return o.Dialer
	}
	return NewDialer(0)
}

// storeUpload 在条目锁内把 fill 产出的字节写入 store，失败时丢弃临时文件。
func storeUpload(ctx context.Context, store cache.Store, name string, fill func(w io.Writer) error) (*cache.Entry, error) {
	unlock := store.Lock(name)
	defer unlock()

	pending, err := store.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := fill(pending); err != nil {
		pending.Abort()
		return nil, err
	}
	return pending.Commit()
}

// watchConn 在 ctx 取消时打断控制连接上的阻塞读写。
func watchConn(ctx context.Context, conn net.Conn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(aLongTimeAgo)
	})
}
