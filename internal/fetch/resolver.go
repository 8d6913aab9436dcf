// Package fetch 实现缓存侧 get 的回源决策：本地命中直接回复，未命中时
// 先向源站原样转发请求行，再把文件拉取到本地存储后回复请求方。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/command"
	"github.com/any-hub/snw-hub/internal/transport"
	"github.com/sirupsen/logrus"
)

// 回复请求方时携带的 feedback 文本。
const (
	FeedbackFromCache  = "File delivered from cache."
	FeedbackFromServer = "File delivered from server."
)

// Outcome 描述一次 get 的处理结果。
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeFetched  Outcome = "fetched"
	OutcomeNotFound Outcome = "not_found"
)

// Origin 是单一上游源站。
type Origin interface {
	// Forward 把请求行原样发给源站，返回等待接收文件的交换。
	Forward(ctx context.Context, cmd command.Command) (transport.Exchange, error)
}

// Resolver 串联本地存储与源站；同名未命中在条目锁内串行处理。
type Resolver struct {
	store  cache.Store
	origin Origin
	logger logrus.FieldLogger
	stats  *Stats
}

// NewResolver 构造回源解析器。
func NewResolver(store cache.Store, origin Origin, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	return &Resolver{
		store:  store,
		origin: origin,
		logger: logger,
		stats:  &Stats{},
	}
}

// Stats 返回解析器的计数器。
func (r *Resolver) Stats() *Stats {
	return r.stats
}

// ResolveGet 处理一次 get：命中时直接回复；未命中时回源、落盘后回复，源站也没有则回复未找到。
// 返回的 error 只表示本地 I/O、回源传输或回复请求方时的失败，未找到不是错误。
func (r *Resolver) ResolveGet(ctx context.Context, cmd command.Command, responder transport.Responder) (Outcome, error) {
	fields := logrus.Fields{"file": cmd.Name}

	if result, err := r.store.Get(ctx, cmd.Name); err == nil {
		r.stats.hits.Add(1)
		r.logger.WithFields(fields).Info("cache_hit")
		return OutcomeHit, r.serve(ctx, responder, result, FeedbackFromCache)
	} else if !errors.Is(err, cache.ErrNotFound) {
		r.stats.failures.Add(1)
		return "", fmt.Errorf("read cache entry: %w", err)
	}

	r.stats.misses.Add(1)
	r.logger.WithFields(fields).Info("cache_miss")

	if err := r.fill(ctx, cmd); err != nil {
		r.stats.failures.Add(1)
		r.logger.WithFields(fields).WithError(err).Warn("origin_fetch_failed")
	}

	result, err := r.store.Get(ctx, cmd.Name)
	if errors.Is(err, cache.ErrNotFound) {
		r.stats.notFound.Add(1)
		r.logger.WithFields(fields).Info("origin_not_found")
		if err := responder.NotFound(ctx); err != nil {
			return OutcomeNotFound, fmt.Errorf("reply not found: %w", err)
		}
		return OutcomeNotFound, nil
	}
	if err != nil {
		r.stats.failures.Add(1)
		return "", fmt.Errorf("read fetched entry: %w", err)
	}
	return OutcomeFetched, r.serve(ctx, responder, result, FeedbackFromServer)
}

// fill 在条目锁内回源；拿到锁后若条目已被其他请求写入则直接返回。
func (r *Resolver) fill(ctx context.Context, cmd command.Command) error {
	unlock := r.store.Lock(cmd.Name)
	defer unlock()

	if _, err := r.store.Stat(ctx, cmd.Name); err == nil {
		return nil
	}

	exchange, err := r.origin.Forward(ctx, cmd)
	if err != nil {
		return fmt.Errorf("forward request: %w", err)
	}
	defer exchange.Close()
	r.stats.forwards.Add(1)

	pending, err := r.store.Create(ctx, cmd.Name)
	if err != nil {
		return err
	}
	feedback, err := exchange.Download(ctx, pending)
	if err != nil {
		pending.Abort()
		if errors.Is(err, transport.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("download from origin: %w", err)
	}
	entry, err := pending.Commit()
	if err != nil {
		return fmt.Errorf("commit cache entry: %w", err)
	}
	r.stats.fetched.Add(1)
	r.logger.WithFields(logrus.Fields{
		"file":            cmd.Name,
		"size":            entry.SizeBytes,
		"origin_feedback": feedback,
	}).Info("origin_fetch_completed")
	return nil
}

func (r *Resolver) serve(ctx context.Context, responder transport.Responder, result *cache.ReadResult, feedback string) error {
	defer result.Reader.Close()
	if err := responder.Found(ctx, result, feedback); err != nil {
		r.stats.failures.Add(1)
		return fmt.Errorf("serve %s: %w", result.Entry.Name, err)
	}
	r.stats.served.Add(1)
	return nil
}
