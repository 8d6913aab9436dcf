package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/any-hub/snw-hub/internal/transport"
)

// StatusCacheReadOnly 是缓存收到 put 时的回复。
const StatusCacheReadOnly = "Cache accepts get requests only."

// CacheHandler 是缓存角色的请求处理：get 交给回源解析器，put 一律拒绝。
type CacheHandler struct {
	resolver *fetch.Resolver
	protocol transport.Protocol
	logger   logrus.FieldLogger
}

var _ Handler = (*CacheHandler)(nil)

// NewCacheHandler 构造缓存处理器。
func NewCacheHandler(resolver *fetch.Resolver, protocol transport.Protocol, logger logrus.FieldLogger) *CacheHandler {
	return &CacheHandler{resolver: resolver, protocol: protocol, logger: logger}
}

func (h *CacheHandler) Handle(ctx context.Context, conn *transport.Conn) error {
	fields := logrus.Fields{"request_id": conn.ID, "file": conn.Command.Name}

	if conn.Command.Op != command.Get {
		h.logger.WithFields(fields).Warn("cache_put_rejected")
		return stream.WriteString(conn, StatusCacheReadOnly)
	}

	responder := h.protocol.Reply(conn)
	outcome, err := h.resolver.ResolveGet(ctx, conn.Command, responder)
	if err != nil {
		if errors.Is(err, cache.ErrInvalidName) {
			h.logger.WithFields(fields).Warn("invalid_file_name")
			return responder.NotFound(ctx)
		}
		return fmt.Errorf("resolve %s: %w", conn.Command.Name, err)
	}
	h.logger.WithFields(fields).WithField("outcome", string(outcome)).Info("get_resolved")
	return nil
}
