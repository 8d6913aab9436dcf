package integration

import (
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/snw-hub/internal/cache"
	"github.com/any-hub/snw-hub/internal/client"
	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/server"
	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/transport"
)

// topology 在回环地址上拉起 server、cache 两个角色，并返回一个指向它们的客户端。
type topology struct {
	originStore    cache.Store
	originListener *server.Listener
	origin         transport.Endpoint

	cacheStore    cache.Store
	cacheListener *server.Listener
	resolver      *fetch.Resolver
	cache         transport.Endpoint

	clientStore cache.Store
	client      *client.Client
}

func newTopology(t *testing.T, protocol string) *topology {
	t.Helper()
	return newTopologyWith(t, protocol, 1, fastPolicy())
}

// newTopologyWith 允许指定两个监听器的并发上限与停等策略。
func newTopologyWith(t *testing.T, protocol string, maxConcurrent int, policy snw.Policy) *topology {
	t.Helper()
	logger := discardLogger()
	root := t.TempDir()
	topo := &topology{
		originStore: newStore(t, filepath.Join(root, "server_fl")),
		cacheStore:  newStore(t, filepath.Join(root, "cache_fl")),
		clientStore: newStore(t, filepath.Join(root, "client_fl")),
	}

	originProto := newProtocolWith(t, protocol, policy, logger)
	topo.origin, topo.originListener = startRole(t, server.NewOriginHandler(topo.originStore, originProto, logger), maxConcurrent, logger)

	cacheProto := newProtocolWith(t, protocol, policy, logger)
	topo.resolver = fetch.NewResolver(topo.cacheStore, fetch.NewUpstream(cacheProto, topo.origin), logger)
	topo.cache, topo.cacheListener = startRole(t, server.NewCacheHandler(topo.resolver, cacheProto, logger), maxConcurrent, logger)

	c, err := client.New(client.Options{
		Protocol: newProtocolWith(t, protocol, policy, logger),
		Server:   topo.origin,
		Cache:    topo.cache,
		Store:    topo.clientStore,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	topo.client = c
	return topo
}

func startRole(t *testing.T, handler server.Handler, maxConcurrent int, logger logrus.FieldLogger) (transport.Endpoint, *server.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	listener, err := server.NewListener(server.ListenerOptions{
		Logger:         logger,
		Handler:        handler,
		MaxConcurrent:  maxConcurrent,
		CommandTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("listener: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	addr := ln.Addr().(*net.TCPAddr)
	return transport.Endpoint{Host: "127.0.0.1", Port: addr.Port}, listener
}

// fastPolicy 缩短重试节奏，让握手竞争与超时路径在测试里秒级完成。
func fastPolicy() snw.Policy {
	return snw.Policy{
		Attempts:    5,
		AckTimeout:  500 * time.Millisecond,
		RetryDelay:  50 * time.Millisecond,
		ChunkSize:   1000,
		IdleTimeout: 2 * time.Second,
	}
}

func newProtocol(t *testing.T, key string, logger logrus.FieldLogger) transport.Protocol {
	t.Helper()
	return newProtocolWith(t, key, fastPolicy(), logger)
}

func newProtocolWith(t *testing.T, key string, policy snw.Policy, logger logrus.FieldLogger) transport.Protocol {
	t.Helper()
	proto, err := transport.New(key, transport.Options{
		Logger: logger,
		SNW:    snw.New(policy, logger),
		Dialer: transport.NewDialer(time.Second),
	})
	if err != nil {
		t.Fatalf("protocol %s: %v", key, err)
	}
	return proto
}

func newStore(t *testing.T, dir string) cache.Store {
	t.Helper()
	store, err := cache.NewStore(dir)
	if err != nil {
		t.Fatalf("store init error: %v", err)
	}
	return store
}

func readEntry(t *testing.T, store cache.Store, name string) []byte {
	t.Helper()
	res, err := store.Get(context.Background(), name)
	if err != nil {
		t.Fatalf("get %s from %s: %v", name, store.Root(), err)
	}
	defer res.Reader.Close()
	data, err := io.ReadAll(res.Reader)
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return data
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
