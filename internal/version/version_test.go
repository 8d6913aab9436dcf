package version

import (
	"strings"
	"testing"
)

func TestFullIncludesNameAndCommit(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, "snw-hub ") {
		t.Fatalf("unexpected version string %q", full)
	}
	if !strings.Contains(full, Version) || !strings.Contains(full, Commit) {
		t.Fatalf("version string should carry version and commit: %q", full)
	}
}
