package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggingFallbackToStdout(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root 用户不受目录权限限制")
	}
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	logPath := filepath.Join(blocked, "sub", "snw-hub.log")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogLevel = "info"
LogFilePath = "%s"

[Server]
ListenPort = 5001
StoragePath = "%s"
`, logPath, filepath.Join(dir, "server_fl")))

	useBufferWriters(t, "")
	code := run(context.Background(), cliOptions{configPath: configPath, checkOnly: true, role: "server"})
	if code != 0 {
		t.Fatalf("日志 fallback 不应导致失败，得到 %d", code)
	}
	if !strings.Contains(stdOutBuffer().String(), "logger_fallback") {
		t.Fatalf("应记录 logger_fallback: %s", stdOutBuffer().String())
	}
}

func TestLoggingWritesToConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "logs", "snw-hub.log")
	configPath := writeConfigFile(t, fmt.Sprintf(`
LogFilePath = "%s"

[Cache]
StoragePath = "%s"
`, logPath, filepath.Join(dir, "cache_fl")))

	useBufferWriters(t, "")
	if code := run(context.Background(), cliOptions{configPath: configPath, checkOnly: true, role: "cache"}); code != 0 {
		t.Fatalf("期望退出码 0，得到 %d", code)
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("读取日志失败: %v", err)
	}
	if !strings.Contains(string(data), `"role":"cache"`) {
		t.Fatalf("日志缺少角色字段: %s", string(data))
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(file, []byte(strings.TrimSpace(content)), 0o600); err != nil {
		t.Fatalf("写入配置失败: %v", err)
	}
	return file
}
