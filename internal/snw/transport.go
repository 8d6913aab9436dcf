// Package snw 实现基于不可靠数据报的停等（Stop-and-Wait）可靠文件传输。
//
// 一次会话的报文顺序固定为：
//
//	sender                     receiver
//	LEN:<n>      ──────────▶
//	             ◀──────────   ACK
//	DATA(chunk)  ──────────▶            （每个分片逐一确认）
//	             ◀──────────   ACK
//	             ◀──────────   FIN
//	feedback     ──────────▶
//
// 分片不带序号，接收方按到达顺序直接追加写入，无法识别乱序或重复的报文。
// 需要更强保证时，可另行实现 Transferer 替换 Transport 而无需改动调用方。
package snw

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// File 描述待上传文件：名称仅用于日志，长度必须事先已知。
type File struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// Transferer 抽象单次单向的可靠文件传输。
type Transferer interface {
	Upload(ctx context.Context, conn net.PacketConn, peer net.Addr, file File, feedback string) (*Session, error)
	Download(ctx context.Context, conn net.PacketConn, dst io.Writer, name string) (*Session, error)
	Policy() Policy
}

// Transport 是停等协议的默认实现，保留“信任到达顺序”的原始语义。
type Transport struct {
	policy Policy
	logger logrus.FieldLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ Transferer = (*Transport)(nil)

// New 构造停等传输实例；logger 为空时丢弃日志。
func New(policy Policy, logger logrus.FieldLogger) *Transport {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Transport{
		policy: policy.normalized(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Policy 返回归一化后的生效策略。
func (t *Transport) Policy() Policy {
	return t.policy
}

// read 在 timeout 内读取一个数据报，超时映射为 ErrTimeout，取消映射为 ctx.Err()。
func (t *Transport) read(ctx context.Context, conn net.PacketConn, buf []byte, timeout time.Duration) (int, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, nil, err
	}
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		if isTimeout(err) {
			return 0, nil, ErrTimeout
		}
		return 0, nil, err
	}
	return n, addr, nil
}

func (t *Transport) send(conn net.PacketConn, msg Message, peer net.Addr) error {
	_, err := conn.WriteTo(msg.Encode(), peer)
	return err
}

// watch 在 ctx 取消时立即打断阻塞中的读操作。
func watch(ctx context.Context, conn net.PacketConn) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
