package client

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/any-hub/snw-hub/internal/snw"
	"github.com/any-hub/snw-hub/internal/stream"
	"github.com/any-hub/snw-hub/internal/transport"
)

func TestConsoleCommands(t *testing.T) {
	noColor(t)

	testCases := []struct {
		name      string
		input     string
		commander *fakeCommander
		want      []string
		puts      []string
		gets      []string
	}{
		{
			name:      "quit",
			input:     "quit\nget never.txt\n",
			commander: &fakeCommander{},
			want:      []string{Prompt + MsgExit},
		},
		{
			name:      "put uploaded",
			input:     "put a.txt\nquit\n",
			commander: &fakeCommander{putResp: stream.StatusUploaded},
			want:      []string{MsgAwaiting, "Server response: " + stream.StatusUploaded},
			puts:      []string{"a.txt"},
		},
		{
			name:      "put missing",
			input:     "put ghost.txt\nquit\n",
			commander: &fakeCommander{putErr: ErrLocalFileMissing},
			want:      []string{"File not found: ghost.txt"},
			puts:      []string{"ghost.txt"},
		},
		{
			name:      "get served",
			input:     "get b.txt\nquit\n",
			commander: &fakeCommander{feedback: "File delivered from cache."},
			want:      []string{"File b.txt received.", "Server response: File delivered from cache."},
			gets:      []string{"b.txt"},
		},
		{
			name:      "get not found",
			input:     "get c.txt\nquit\n",
			commander: &fakeCommander{getErr: transport.ErrNotFound},
			want:      []string{stream.StatusNotFound},
			gets:      []string{"c.txt"},
		},
		{
			name:      "snw failure",
			input:     "get d.txt\nquit\n",
			commander: &fakeCommander{getErr: snw.ErrNoFIN},
			want:      []string{"Did not receive FIN. Terminating."},
			gets:      []string{"d.txt"},
		},
		{
			name:      "usage hints",
			input:     "put\nget a b\nlist\n\nquit\n",
			commander: &fakeCommander{},
			want:      []string{usagePutFormat, usageGetFormat, MsgInvalid},
		},
		{
			name:      "verbs are case sensitive",
			input:     "GET a.txt\nquit\n",
			commander: &fakeCommander{},
			want:      []string{MsgInvalid},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			console := NewConsole(tc.commander, strings.NewReader(tc.input), &out)
			if err := console.Run(context.Background()); err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(out.String(), want) {
					t.Fatalf("output missing %q:\n%s", want, out.String())
				}
			}
			if !equalNames(tc.commander.puts, tc.puts) || !equalNames(tc.commander.gets, tc.gets) {
				t.Fatalf("unexpected calls puts=%v gets=%v", tc.commander.puts, tc.commander.gets)
			}
		})
	}
}

func TestConsoleStopsAtEndOfInput(t *testing.T) {
	noColor(t)
	var out bytes.Buffer
	console := NewConsole(&fakeCommander{}, strings.NewReader("get a.txt"), &out)
	if err := console.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(out.String(), MsgExit) {
		t.Fatalf("输入结束不应打印退出提示")
	}
}

func TestConsoleStopsOnCancelledContext(t *testing.T) {
	noColor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := &fakeCommander{}
	console := NewConsole(cmd, strings.NewReader("get a.txt\n"), &bytes.Buffer{})
	if err := console.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cmd.gets) != 0 {
		t.Fatalf("取消后不应再执行命令")
	}
}

func TestDescribeWrapsUnknownErrors(t *testing.T) {
	if got := describe(errors.New("connection refused")); got != "Error: connection refused" {
		t.Fatalf("unexpected description %q", got)
	}
	if got := describe(snw.ErrHandshakeFailed); !strings.Contains(got, "LEN") {
		t.Fatalf("unexpected description %q", got)
	}
}

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeCommander struct {
	putResp  string
	putErr   error
	feedback string
	getErr   error
	puts     []string
	gets     []string
}

func (f *fakeCommander) Put(ctx context.Context, name string) (string, error) {
	f.puts = append(f.puts, name)
	return f.putResp, f.putErr
}

func (f *fakeCommander) Get(ctx context.Context, name string) (*GetResult, error) {
	f.gets = append(f.gets, name)
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &GetResult{Feedback: f.feedback}, nil
}
