package main

import (
	"path/filepath"
	"testing"
)

// configFixture 返回 internal/config/testdata 下的样例配置；go test 的工作目录即仓库根目录。
func configFixture(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("internal", "config", "testdata", name))
	if err != nil {
		t.Fatalf("定位配置样例失败: %v", err)
	}
	return path
}
