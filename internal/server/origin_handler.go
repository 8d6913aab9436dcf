package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/transport"
)

// OriginHandler 是源站角色的请求处理：put 落盘，get 从本地目录回复。
type OriginHandler struct {
	store    cache.Store
	protocol transport.Protocol
	logger   logrus.FieldLogger
}

var _ Handler = (*OriginHandler)(nil)

// NewOriginHandler 构造源站处理器。
func NewOriginHandler(store cache.Store, protocol transport.Protocol, logger logrus.FieldLogger) *OriginHandler {
	return &OriginHandler{store: store, protocol: protocol, logger: logger}
}

func (h *OriginHandler) Handle(ctx context.Context, conn *transport.Conn) error {
	fields := logrus.Fields{"request_id": conn.ID, "file": conn.Command.Name}

	switch conn.Command.Op {
	case command.Put:
		entry, err := h.protocol.Accept(ctx, conn, h.store)
		if err != nil {
			return fmt.Errorf("receive %s: %w", conn.Command.Name, err)
		}
		h.logger.WithFields(fields).WithField("size", entry.SizeBytes).Info("file_received")
		return nil

	case command.Get:
		responder := h.protocol.Reply(conn)
		result, err := h.store.Get(ctx, conn.Command.Name)
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrInvalidName) {
			h.logger.WithFields(fields).Info("file_not_found")
			return responder.NotFound(ctx)
		}
		if err != nil {
			return fmt.Errorf("open %s: %w", conn.Command.Name, err)
		}
		defer result.Reader.Close()
		if err := responder.Found(ctx, result, fetch.FeedbackFromServer); err != nil {
			return fmt.Errorf("send %s: %w", conn.Command.Name, err)
		}
		h.logger.WithFields(fields).WithField("size", result.Entry.SizeBytes).Info("file_delivered")
		return nil
	}
	return fmt.Errorf("%w: %s", command.ErrInvalidCommand, conn.Command.Op)
}
