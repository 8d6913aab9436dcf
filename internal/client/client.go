// Package client 实现客户端角色：put 把本地文件推送到源站，get 经缓存拉取到本地目录。
package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/logging"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/transport"
)

// ErrLocalFileMissing 表示 put 的文件不在客户端目录中。
var ErrLocalFileMissing = errors.New("local file not found")

// Options 描述客户端依赖。
type Options struct {
	Protocol transport.Protocol
	// Server 接收 put，Cache 响应 get。
	Server transport.Endpoint
	Cache  transport.Endpoint
	Store  cache.Store
	Logger logrus.FieldLogger
}

// Client 只负责一次请求的完整往返，不持有长连接。
type Client struct {
	protocol transport.Protocol
	server   transport.Endpoint
	cache    transport.Endpoint
	store    cache.Store
	logger   logrus.FieldLogger
}

// GetResult 是一次成功拉取的结果。
type GetResult struct {
	Entry    *cache.Entry
	Feedback string
}

// New 校验依赖并构造客户端。
func New(opts Options) (*Client, error) {
	if opts.Protocol == nil {
		return nil, errors.New("protocol is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Client{
		protocol: opts.Protocol,
		server:   opts.Server,
		cache:    opts.Cache,
		store:    opts.Store,
		logger:   logger,
	}, nil
}

// Put 上传本地目录中的 name，返回源站的结果文本（对端未回复时为空）。
func (c *Client) Put(ctx context.Context, name string) (string, error) {
	file, err := c.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrInvalidName) {
			return "", fmt.Errorf("%s: %w", name, ErrLocalFileMissing)
		}
		return "", fmt.Errorf("open %s: %w", name, err)
	}
	defer file.Reader.Close()

	fields := c.fields(command.Put, name)
	fields["size"] = file.Entry.SizeBytes
	c.logger.WithFields(fields).Info("put_started")

	resp, err := c.protocol.Send(ctx, c.server, snw.File{
		Name:   name,
		Size:   file.Entry.SizeBytes,
		Reader: file.Reader,
	})
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("put_failed")
		return "", fmt.Errorf("put %s: %w", name, err)
	}
	c.logger.WithFields(fields).WithField("response", resp).Info("put_completed")
	return resp, nil
}

// Get 从缓存拉取 name 写入本地目录；缓存与源站都没有时返回 transport.ErrNotFound。
// 失败不会在本地留下残缺文件。
func (c *Client) Get(ctx context.Context, name string) (*GetResult, error) {
	fields := c.fields(command.Get, name)

	unlock := c.store.Lock(name)
	defer unlock()

	pending, err := c.store.Create(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", name, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = pending.Abort()
		}
	}()

	exchange, err := c.protocol.Request(ctx, c.cache, command.New(command.Get, name))
	if err != nil {
		c.logger.WithFields(fields).WithError(err).Warn("get_request_failed")
		return nil, fmt.Errorf("request %s: %w", name, err)
	}
	defer exchange.Close()

	feedback, err := exchange.Download(ctx, pending)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			c.logger.WithFields(fields).Info("get_not_found")
		} else {
			c.logger.WithFields(fields).WithError(err).Warn("get_failed")
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}

	entry, err := pending.Commit()
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", name, err)
	}
	committed = true

	fields["size"] = entry.SizeBytes
	c.logger.WithFields(fields).WithField("feedback", feedback).Info("get_completed")
	return &GetResult{Entry: entry, Feedback: feedback}, nil
}

func (c *Client) fields(op command.Op, name string) logrus.Fields {
	return logging.RequestFields("client", uuid.NewString(), string(op), name, c.protocol.Key())
}
