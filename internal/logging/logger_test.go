package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/any-hub/asset-hub/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"})
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := InitLogger(config.GlobalConfig{LogLevel: "loud"}); err == nil {
		t.Fatalf("无法识别的日志级别应报错")
	}
}

func TestInitLoggerFallbackWhenDirectoryUnavailable(t *testing.T) {
	dir := t.TempDir()
	// 用普通文件占住目录位置，MkdirAll 必然失败（root 下也一样）。
	blocked := filepath.Join(dir, "blocked")
	if err := os.WriteFile(blocked, []byte("x"), 0o600); err != nil {
		t.Fatalf("创建占位文件失败: %v", err)
	}

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "asset-hub.log"),
	}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "asset-hub.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path, LogMaxSize: 1}
	logger, err := InitLogger(cfg)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestFieldHelpers(t *testing.T) {
	base := BaseFields("startup", "/etc/asset-hub.toml")
	if base["action"] != "startup" || base["configPath"] != "/etc/asset-hub.toml" {
		t.Fatalf("BaseFields 字段错误: %v", base)
	}
	req := RequestFields("rid", "GET", "/assets/a.jpg", 200)
	if req["request_id"] != "rid" || req["status"] != 200 {
		t.Fatalf("RequestFields 字段错误: %v", req)
	}
	asset := AssetFields("a.jpg", "memory", 12)
	if asset["tier"] != "memory" || asset["bytes"] != 12 {
		t.Fatalf("AssetFields 字段错误: %v", asset)
	}
}
