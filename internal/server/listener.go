package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/logging"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/any-hub/snw-hub/internal/transport"
)

// StatusInvalidCommand 是请求行无法解析时回复的文本。
const StatusInvalidCommand = "Invalid command. Usage: put <filename> | get <filename>"

const defaultCommandTimeout = 10 * time.Second

// Handler 处理一条已读取请求行的控制连接，返回后连接即被关闭。
type Handler interface {
	Handle(ctx context.Context, conn *transport.Conn) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, conn *transport.Conn) error

// Handle makes HandlerFunc satisfy Handler.
func (f HandlerFunc) Handle(ctx context.Context, conn *transport.Conn) error {
	return f(ctx, conn)
}

// ListenerOptions 控制分发循环的行为。
type ListenerOptions struct {
	Logger  logrus.FieldLogger
	Handler Handler
	// Role/Protocol 只用于日志字段。
	Role     string
	Protocol string
	// MaxConcurrent 为同时处理的连接上限，<=1 时逐个处理。
	MaxConcurrent  int
	CommandTimeout time.Duration
}

// Listener 是 accept → 读请求行 → 分发 → 关闭 的控制连接循环。
type Listener struct {
	logger         logrus.FieldLogger
	handler        Handler
	role           string
	protocol       string
	maxConcurrent  int
	commandTimeout time.Duration

	accepted atomic.Int64
	served   atomic.Int64
	failed   atomic.Int64
	invalid  atomic.Int64
	panics   atomic.Int64
	active   atomic.Int64
}

// ListenerStats 是分发循环的计数快照。
type ListenerStats struct {
	Accepted int64 `json:"accepted"`
	Served   int64 `json:"served"`
	Failed   int64 `json:"failed"`
	Invalid  int64 `json:"invalid"`
	Panics   int64 `json:"panics"`
	Active   int64 `json:"active"`
}

// NewListener 校验依赖并构造分发循环。
func NewListener(opts ListenerOptions) (*Listener, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	return &Listener{
		logger:         opts.Logger,
		handler:        opts.Handler,
		role:           opts.Role,
		protocol:       opts.Protocol,
		maxConcurrent:  maxConcurrent,
		commandTimeout: timeout,
	}, nil
}

// Serve 在 ln 上循环接受控制连接，直到 ctx 取消或 ln 不可用。
// 先占用并发槽位再 Accept：上限为 1 时行为与逐个处理完全一致。
// ctx 取消时关闭 ln 并等待处理中的连接结束，返回 nil。
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
	})
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	slots := make(chan struct{}, l.maxConcurrent)
	var backoff time.Duration
	for {
		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return nil
		}

		raw, err := ln.Accept()
		if err != nil {
			<-slots
			if ctx.Err() != nil {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				backoff = nextBackoff(backoff)
				l.logger.WithError(err).WithField("retry_in", backoff.String()).Warn("accept_failed")
				select {
				case <-time.After(backoff):
					continue
				case <-ctx.Done():
					return nil
				}
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0
		l.accepted.Add(1)

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-slots }()
			l.handle(ctx, raw)
		}()
	}
}

// handle 是单个连接的故障边界：任何错误或 panic 都只影响当前连接。
func (l *Listener) handle(ctx context.Context, raw net.Conn) {
	id := uuid.NewString()
	l.active.Add(1)
	start := time.Now()
	defer func() {
		l.active.Add(-1)
		raw.Close()
	}()

	entry := l.logger.WithFields(logging.RequestFields(l.role, id, "", "", l.protocol)).
		WithField("remote", raw.RemoteAddr().String())

	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			entry.WithFields(logrus.Fields{
				"panic": fmt.Sprint(r),
				"stack": string(debug.Stack()),
			}).Error("request_panic")
		}
	}()

	cmd, err := l.readCommand(raw)
	if err != nil {
		if errors.Is(err, command.ErrInvalidCommand) {
			l.invalid.Add(1)
			entry.WithError(err).Warn("invalid_command")
			_ = stream.WriteString(raw, StatusInvalidCommand)
			return
		}
		l.failed.Add(1)
		if errors.Is(err, io.EOF) {
			entry.Debug("connection_closed_before_command")
			return
		}
		entry.WithError(err).Warn("read_command_failed")
		return
	}

	entry = entry.WithFields(logrus.Fields{"op": string(cmd.Op), "file": cmd.Name})
	entry.Info("request_received")

	conn := &transport.Conn{Conn: raw, ID: id, Command: cmd}
	if err := l.handler.Handle(ctx, conn); err != nil {
		l.failed.Add(1)
		entry.WithError(err).WithField("elapsed", time.Since(start).String()).Warn("request_failed")
		return
	}
	l.served.Add(1)
	entry.WithField("elapsed", time.Since(start).String()).Info("request_completed")
}

func (l *Listener) readCommand(raw net.Conn) (command.Command, error) {
	if err := raw.SetReadDeadline(time.Now().Add(l.commandTimeout)); err != nil {
		return command.Command{}, err
	}
	line, err := stream.ReadString(raw)
	if err != nil {
		return command.Command{}, err
	}
	if err := raw.SetReadDeadline(time.Time{}); err != nil {
		return command.Command{}, err
	}
	return command.Parse(line)
}

// Stats 返回计数快照。
func (l *Listener) Stats() ListenerStats {
	return ListenerStats{
		Accepted: l.accepted.Load(),
		Served:   l.served.Load(),
		Failed:   l.failed.Load(),
		Invalid:  l.invalid.Load(),
		Panics:   l.panics.Load(),
		Active:   l.active.Load(),
	}
}

func nextBackoff(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	prev *= 2
	if prev > time.Second {
		prev = time.Second
	}
	return prev
}
