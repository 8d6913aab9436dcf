package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/sirupsen/logrus"
)

func init() {
	MustRegister(Metadata{
		Key:         "tcp",
		Description: "文件字节跟随请求行在同一条可靠字节流上传输",
		New:         newTCP,
	})
}

type tcpProtocol struct {
	logger logrus.FieldLogger
	dialer Dialer
}

func newTCP(opts Options) (Protocol, error) {
	return &tcpProtocol{
		logger: opts.logger(),
		dialer: opts.dialer(),
	}, nil
}

func (p *tcpProtocol) Key() string {
	return "tcp"
}

func (p *tcpProtocol) dial(ctx context.Context, endpoint Endpoint, cmd command.Command) (net.Conn, error) {
	conn, err := p.dialer.DialContext(ctx, "tcp", endpoint.Address())
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}
	if err := stream.WriteString(conn, cmd.String()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send request line: %w", err)
	}
	return conn, nil
}

func (p *tcpProtocol) Request(ctx context.Context, endpoint Endpoint, cmd command.Command) (Exchange, error) {
	conn, err := p.dial(ctx, endpoint, cmd)
	if err != nil {
		return nil, err
	}
	return &tcpExchange{conn: conn}, nil
}

func (p *tcpProtocol) Send(ctx context.Context, endpoint Endpoint, file snw.File) (string, error) {
	conn, err := p.dial(ctx, endpoint, command.New(command.Put, file.Name))
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := watchConn(ctx, conn)
	defer stop()

	resp, err := stream.Upload(conn, file.Name, file.Size, file.Reader)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return resp, nil
}

func (p *tcpProtocol) Reply(conn *Conn) Responder {
	return &tcpResponder{conn: conn}
}

// Accept 读取 put 帧；落盘名称取帧头中的文件名。
func (p *tcpProtocol) Accept(ctx context.Context, conn *Conn, store cache.Store) (*cache.Entry, error) {
	stop := watchConn(ctx, conn)
	defer stop()

	name, size, err := stream.ReadHeader(conn)
	if err != nil {
		return nil, err
	}
	if name != conn.Command.Name {
		p.logger.WithFields(logrus.Fields{
			"request_id":   conn.ID,
			"request_name": conn.Command.Name,
			"header_name":  name,
		}).Warn("upload_name_mismatch")
	}

	entry, err := storeUpload(ctx, store, name, func(w io.Writer) error {
		_, err := stream.ReadBody(conn, w, size)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := stream.WriteString(conn, stream.StatusUploaded); err != nil {
		// 文件已提交，仅回执失败
		p.logger.WithField("request_id", conn.ID).WithError(err).Warn("upload_ack_failed")
	}
	return entry, nil
}

type tcpExchange struct {
	conn net.Conn
}

func (e *tcpExchange) Download(ctx context.Context, dst io.Writer) (string, error) {
	stop := watchConn(ctx, e.conn)
	defer stop()

	feedback, err := stream.Fetch(e.conn, dst)
	if err != nil {
		if errors.Is(err, stream.ErrNotFound) {
			return "", ErrNotFound
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return feedback, nil
}

func (e *tcpExchange) Close() error {
	return e.conn.Close()
}

type tcpResponder struct {
	conn *Conn
}

func (r *tcpResponder) Found(ctx context.Context, file *cache.ReadResult, feedback string) error {
	stop := watchConn(ctx, r.conn)
	defer stop()
	return stream.ServeFile(r.conn, file.Entry.SizeBytes, file.Reader, feedback)
}

func (r *tcpResponder) NotFound(ctx context.Context) error {
	return stream.WriteNotFound(r.conn)
}
