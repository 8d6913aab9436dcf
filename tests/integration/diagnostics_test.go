package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/any-hub/snw-hub/internal/fetch"
	"github.com/any-hub/snw-hub/internal/server"
)

func TestDiagnosticsReflectCacheActivity(t *testing.T) {
	topo := newTopology(t, "tcp")
	ctx := context.Background()

	if _, err := topo.originStore.Put(ctx, "index.html", bytes.NewReader([]byte("<html></html>"))); err != nil {
		t.Fatalf("seed origin: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := topo.client.Get(ctx, "index.html"); err != nil {
			t.Fatalf("get #%d: %v", i, err)
		}
	}

	app, err := server.NewDiagnosticsApp(server.DiagnosticsOptions{
		Logger:   discardLogger(),
		Role:     "cache",
		Protocol: "tcp",
		Store:    topo.cacheStore,
		Listener: topo.cacheListener,
		Stats:    topo.resolver.Stats(),
	})
	if err != nil {
		t.Fatalf("app error: %v", err)
	}

	port := freePort(t)
	serveCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ServeDiagnostics(serveCtx, app, port, discardLogger()) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("diagnostics did not shut down")
		}
	})

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	waitFor(t, func() bool {
		resp, err := http.Get(base + "/-/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	var stats struct {
		Requests server.ListenerStats `json:"requests"`
		Fetch    fetch.Snapshot       `json:"fetch"`
	}
	getJSON(t, base+"/-/stats", &stats)
	if stats.Fetch.Hits != 1 || stats.Fetch.Fetched != 1 {
		t.Fatalf("unexpected fetch stats %+v", stats.Fetch)
	}
	if stats.Requests.Accepted != 2 {
		t.Fatalf("unexpected request stats %+v", stats.Requests)
	}

	var entries struct {
		Count int `json:"count"`
	}
	getJSON(t, base+"/-/entries", &entries)
	if entries.Count != 1 {
		t.Fatalf("expected one cached entry, got %d", entries.Count)
	}
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
