package integration

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/any-hub/snw-hub/internal/client"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/any-hub/snw-hub/internal/transport"
)

// TestGetCancelledWhilePeerStalls 模拟读取请求行后不再应答的对端：
// 取消 ctx 必须及时打断等待，且客户端目录里不留下残缺文件。
func TestGetCancelledWhilePeerStalls(t *testing.T) {
	for _, protocol := range protocols {
		t.Run(protocol, func(t *testing.T) {
			endpoint := stallingPeer(t)
			store := newStore(t, filepath.Join(t.TempDir(), "client_fl"))
			c, err := client.New(client.Options{
				Protocol: newProtocol(t, protocol, discardLogger()),
				Cache:    endpoint,
				Store:    store,
			})
			if err != nil {
				t.Fatalf("client: %v", err)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			started := time.Now()
			if _, err := c.Get(ctx, "slow.iso"); err == nil {
				t.Fatalf("expected an error from a stalled peer")
			}
			if elapsed := time.Since(started); elapsed > 2*time.Second {
				t.Fatalf("cancellation took too long: %s", elapsed)
			}

			entries, err := store.List(context.Background())
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 0 {
				t.Fatalf("cancelled download left entries: %+v", entries)
			}
			matches, _ := filepath.Glob(filepath.Join(store.Root(), ".snw-*"))
			if len(matches) != 0 {
				t.Fatalf("temporary files should be cleaned up, found %v", matches)
			}
		})
	}
}

// TestNotFoundReplyFromRawPeer 确认任何按线格式回复未找到文本的对端都能被识别。
func TestNotFoundReplyFromRawPeer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := stream.ReadString(conn); err != nil {
			return
		}
		_ = stream.WriteNotFound(conn)
	}()

	store := newStore(t, filepath.Join(t.TempDir(), "client_fl"))
	c, err := client.New(client.Options{
		Protocol: newProtocol(t, "tcp", discardLogger()),
		Cache:    transport.Endpoint{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port},
		Store:    store,
	})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := c.Get(context.Background(), "missing.txt"); !errors.Is(err, transport.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func stallingPeer(t *testing.T) transport.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				_, _ = stream.ReadString(conn)
				<-done
			}(conn)
		}
	}()
	t.Cleanup(func() {
		close(done)
		ln.Close()
	})
	return transport.Endpoint{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
}
