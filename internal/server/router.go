package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/version"
)

// DiagnosticsOptions controls the HTTP surface exposed next to a server or
// cache listener.
type DiagnosticsOptions struct {
	Logger   logrus.FieldLogger
	Role     string
	Protocol string
	// Origin 是缓存角色回源的地址，源站角色留空。
	Origin   string
	Store    cache.Store
	Listener *Listener
	// Stats 仅缓存角色提供。
	Stats *fetch.Stats
}

const contextKeyRequestID = "_snwhub_request_id"

// NewDiagnosticsApp builds a Fiber application serving /-/health, /-/entries
// and /-/stats. DELETE /-/entries/:name is the only mutating route: it evicts
// one entry so the next get goes back to the origin.
func NewDiagnosticsApp(opts DiagnosticsOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}

	started := time.Now()
	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/-/health", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"status":         "ok",
			"role":           opts.Role,
			"protocol":       opts.Protocol,
			"version":        version.Full(),
			"uptime_seconds": int64(time.Since(started).Seconds()),
		}
		if opts.Origin != "" {
			payload["origin"] = opts.Origin
		}
		if opts.Listener != nil {
			payload["active"] = opts.Listener.Stats().Active
		}
		return c.JSON(payload)
	})

	app.Get("/-/entries", func(c fiber.Ctx) error {
		entries, err := opts.Store.List(c.Context())
		if err != nil {
			return renderError(c, opts.Logger, fiber.StatusInternalServerError, "list_failed", err)
		}
		if entries == nil {
			entries = []cache.Entry{}
		}
		return c.JSON(fiber.Map{
			"root":    opts.Store.Root(),
			"count":   len(entries),
			"entries": entries,
		})
	})

	app.Get("/-/entries/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		entry, err := opts.Store.Stat(c.Context(), name)
		switch {
		case err == nil:
			return c.JSON(entry)
		case errors.Is(err, cache.ErrNotFound), errors.Is(err, cache.ErrInvalidName):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry_not_found"})
		default:
			return renderError(c, opts.Logger, fiber.StatusInternalServerError, "stat_failed", err)
		}
	})

	app.Delete("/-/entries/:name", func(c fiber.Ctx) error {
		name := strings.TrimSpace(c.Params("name"))
		if _, err := opts.Store.Stat(c.Context(), name); err != nil {
			if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrInvalidName) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry_not_found"})
			}
			return renderError(c, opts.Logger, fiber.StatusInternalServerError, "stat_failed", err)
		}

		// 与传输中的写入互斥，避免删掉刚提交的条目
		unlock := opts.Store.Lock(name)
		err := opts.Store.Remove(c.Context(), name)
		unlock()
		if err != nil {
			return renderError(c, opts.Logger, fiber.StatusInternalServerError, "remove_failed", err)
		}
		opts.Logger.WithFields(logrus.Fields{
			"action":     "evict",
			"name":       name,
			"request_id": RequestID(c),
		}).Info("entry_removed")
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Get("/-/stats", func(c fiber.Ctx) error {
		payload := fiber.Map{"role": opts.Role}
		if opts.Listener != nil {
			payload["requests"] = opts.Listener.Stats()
		}
		if opts.Stats != nil {
			payload["fetch"] = opts.Stats.Snapshot()
		}
		return c.JSON(payload)
	})

	return app, nil
}

// ServeDiagnostics 在 port 上运行诊断服务，ctx 取消时优雅关闭。
func ServeDiagnostics(ctx context.Context, app *fiber.App, port int, logger logrus.FieldLogger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen diagnostics: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.WithError(err).Warn("diagnostics_shutdown_failed")
		}
	})
	defer stop()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("diagnostics_started")

	return app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
}

// requestIDMiddleware 为每个诊断请求生成 ID 并回写 X-Request-ID。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderError(c fiber.Ctx, logger logrus.FieldLogger, status int, code string, err error) error {
	logger.WithFields(logrus.Fields{
		"action":     "diagnostics",
		"path":       c.Path(),
		"request_id": RequestID(c),
	}).WithError(err).Warn(code)
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
