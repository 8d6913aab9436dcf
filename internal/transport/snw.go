package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/sirupsen/logrus"
)

func init() {
	MustRegister(Metadata{
		Key:         "snw",
		Description: "请求行走字节流，文件字节经停等协议在数据报通道上传输",
		Datagram:    true,
		New:         newSNW,
	})
}

// snwProtocol 的端口约定：
//   - 应答方推送文件时发往请求方的控制连接 IP，端口默认取应答方自己的控制端口；
//   - 请求方拉取文件前先绑定本地数据端口，默认取对端的控制端口号，与上一条对应；
//   - put 时应答方在自己的控制端口号上绑定数据报端口，绑定后在控制连接上回复就绪文本，
//     请求方收到后才发送 LEN。
//
// 固定端口号的绑定经 dataPorts 在进程内排队，MaxConcurrent>1 时同端口的会话依次进行。
type snwProtocol struct {
	logger    logrus.FieldLogger
	dialer    Dialer
	transfer  snw.Transferer
	dataPort  int
	replyPort int
}

func newSNW(opts Options) (Protocol, error) {
	transfer := opts.SNW
	if transfer == nil {
		transfer = snw.New(snw.DefaultPolicy(), opts.Logger)
	}
	return &snwProtocol{
		logger:    opts.logger(),
		dialer:    opts.dialer(),
		transfer:  transfer,
		dataPort:  opts.DataPort,
		replyPort: opts.ReplyPort,
	}, nil
}

func (p *snwProtocol) Key() string {
	return "snw"
}

func (p *snwProtocol) Request(ctx context.Context, endpoint Endpoint, cmd command.Command) (Exchange, error) {
	port := p.dataPort
	if port == 0 {
		port = endpoint.Port
	}
	// 先占端口再拨号，排队期间不占用对端的请求行等待时间
	release, err := dataPorts.acquire(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("wait for data port %d: %w", port, err)
	}

	conn, err := p.dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		release()
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	// 必须先绑定数据端口再发请求行，否则对端的 LEN 可能先于绑定到达
	packet, err := listenPacket(hostIP(conn.LocalAddr()), port)
	if err != nil {
		release()
		conn.Close()
		return nil, fmt.Errorf("bind data port %d: %w", port, err)
	}
	if err := stream.WriteString(conn, cmd.String()); err != nil {
		packet.Close()
		release()
		conn.Close()
		return nil, fmt.Errorf("send request line: %w", err)
	}

	return &snwExchange{
		conn:     conn,
		packet:   packet,
		release:  release,
		name:     cmd.Name,
		transfer: p.transfer,
		logger:   p.logger,
	}, nil
}

func (p *snwProtocol) Send(ctx context.Context, endpoint Endpoint, file snw.File) (string, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()

	stop := watchConn(ctx, conn)
	defer stop()

	if err := stream.WriteString(conn, command.New(command.Put, file.Name).String()); err != nil {
		return "", fmt.Errorf("send request line: %w", err)
	}
	reply, err := p.awaitReady(ctx, conn, file.Name)
	if err != nil {
		return "", err
	}
	if reply != "" {
		// 对端拒绝了上传（例如缓存只读），直接把它的答复交给调用方
		return reply, nil
	}

	packet, err := listenPacket(hostIP(conn.LocalAddr()), 0)
	if err != nil {
		return "", fmt.Errorf("open data socket: %w", err)
	}
	defer packet.Close()

	peer := &net.UDPAddr{IP: hostIP(conn.RemoteAddr()), Port: hostPort(conn.RemoteAddr())}
	if _, err := p.transfer.Upload(ctx, packet, peer, file, ""); err != nil {
		return "", err
	}

	// 对端提交成功后会在控制连接上回执；旧版对端不回执，读不到时返回空文本
	_ = conn.SetReadDeadline(time.Now().Add(p.transfer.Policy().AckTimeout))
	resp, err := stream.ReadString(conn)
	if err != nil {
		p.logger.WithField("file", file.Name).WithError(err).Debug("upload_ack_missing")
		return "", nil
	}
	return resp, nil
}

// awaitReady 等待接收方的就绪文本，保证首个 LEN 不会落在尚未绑定的端口上。
// 对端排队或不发就绪文本时最多等一个握手预算，之后照常发送，由 LEN 重试兜底。
// 对端回了其它文本时原样返回，表示不会接收这次上传。
func (p *snwProtocol) awaitReady(ctx context.Context, conn net.Conn, name string) (string, error) {
	policy := p.transfer.Policy()
	wait := time.Duration(policy.Attempts) * (policy.AckTimeout + policy.RetryDelay)
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	defer conn.SetReadDeadline(time.Time{})

	status, err := stream.ReadString(conn)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	switch {
	case err != nil:
		p.logger.WithField("file", name).WithError(err).Debug("upload_ready_missing")
	case status != stream.StatusReady:
		p.logger.WithFields(logrus.Fields{"file": name, "status": status}).Warn("upload_refused")
		return status, nil
	}
	return "", nil
}

func (p *snwProtocol) Reply(conn *Conn) Responder {
	return &snwResponder{
		conn:      conn,
		transfer:  p.transfer,
		replyPort: p.replyPort,
	}
}

func (p *snwProtocol) Accept(ctx context.Context, conn *Conn, store cache.Store) (*cache.Entry, error) {
	port := hostPort(conn.LocalAddr())
	release, err := dataPorts.acquire(ctx, port)
	if err != nil {
		return nil, fmt.Errorf("wait for data port %d: %w", port, err)
	}
	defer release()

	packet, err := listenPacket(hostIP(conn.LocalAddr()), port)
	if err != nil {
		return nil, fmt.Errorf("bind data port %d: %w", port, err)
	}
	defer packet.Close()

	if err := stream.WriteString(conn, stream.StatusReady); err != nil {
		return nil, fmt.Errorf("send ready: %w", err)
	}

	name := conn.Command.Name
	entry, err := storeUpload(ctx, store, name, func(w io.Writer) error {
		_, err := p.transfer.Download(ctx, packet, w, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := stream.WriteString(conn, stream.StatusUploaded); err != nil {
		p.logger.WithField("request_id", conn.ID).WithError(err).Debug("upload_ack_failed")
	}
	return entry, nil
}

type snwExchange struct {
	conn     net.Conn
	packet   net.PacketConn
	release  func()
	name     string
	transfer snw.Transferer
	logger   logrus.FieldLogger
}

// Download 同时监听控制连接：对端回复未找到时立即取消数据报等待。
func (e *snwExchange) Download(ctx context.Context, dst io.Writer) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var notFound atomic.Bool
	go func() {
		status, err := stream.ReadString(e.conn)
		if err == nil && status == stream.StatusNotFound {
			notFound.Store(true)
			cancel()
		}
	}()

	sess, err := e.transfer.Download(ctx, e.packet, dst, e.name)
	if err != nil {
		if notFound.Load() {
			return "", ErrNotFound
		}
		return "", err
	}
	return sess.Feedback, nil
}

func (e *snwExchange) Close() error {
	err := errors.Join(e.packet.Close(), e.conn.Close())
	e.release()
	return err
}

type snwResponder struct {
	conn      *Conn
	transfer  snw.Transferer
	replyPort int
}

func (r *snwResponder) Found(ctx context.Context, file *cache.ReadResult, feedback string) error {
	packet, err := listenPacket(hostIP(r.conn.LocalAddr()), 0)
	if err != nil {
		return fmt.Errorf("open data socket: %w", err)
	}
	defer packet.Close()

	port := r.replyPort
	if port == 0 {
		port = hostPort(r.conn.LocalAddr())
	}
	peer := &net.UDPAddr{IP: hostIP(r.conn.RemoteAddr()), Port: port}
	_, err = r.transfer.Upload(ctx, packet, peer, snw.File{
		Name:   file.Entry.Name,
		Size:   file.Entry.SizeBytes,
		Reader: file.Reader,
	}, feedback)
	return err
}

// NotFound 在控制连接上回复未找到文本，请求方据此放弃数据报等待。
func (r *snwResponder) NotFound(ctx context.Context) error {
	return stream.WriteNotFound(r.conn)
}

func listenPacket(ip net.IP, port int) (net.PacketConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		return nil, err
	}
	return conn, nil
}
