package command

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		want    Command
		wantErr bool
	}{
		{"get", "get report.pdf", Command{Op: Get, Name: "report.pdf"}, false},
		{"put", "put notes.txt", Command{Op: Put, Name: "notes.txt"}, false},
		{"extra spaces", "  get   a.bin ", Command{Op: Get, Name: "a.bin"}, false},
		{"empty", "", Command{}, true},
		{"missing name", "get", Command{}, true},
		{"too many args", "put a b", Command{}, true},
		{"upper case verb", "GET a.bin", Command{}, true},
		{"unknown verb", "delete a.bin", Command{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.line)
			if tc.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Fatalf("expected ErrInvalidCommand for %q, got %v", tc.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	cmd := New(Get, "movie.mp4")
	if cmd.String() != "get movie.mp4" {
		t.Fatalf("请求行应原样还原，得到 %q", cmd.String())
	}
	parsed, err := Parse(cmd.String())
	if err != nil || parsed != cmd {
		t.Fatalf("round trip mismatch: %+v %v", parsed, err)
	}
}
