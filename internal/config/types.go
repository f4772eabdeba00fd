package config

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数。
type GlobalConfig struct {
	ListenPort         int      `mapstructure:"ListenPort"`
	LogLevel           string   `mapstructure:"LogLevel"`
	LogFilePath        string   `mapstructure:"LogFilePath"`
	LogMaxSize         int      `mapstructure:"LogMaxSize"`
	LogMaxBackups      int      `mapstructure:"LogMaxBackups"`
	LogCompress        bool     `mapstructure:"LogCompress"`
	StoragePath        string   `mapstructure:"StoragePath"`
	CacheDirName       string   `mapstructure:"CacheDirName"`
	MaxFetchBytes      int64    `mapstructure:"MaxFetchBytes"`
	UpstreamTimeout    Duration `mapstructure:"UpstreamTimeout"`
	JPEGQuality        int      `mapstructure:"JPEGQuality"`
	PreloadConcurrency int      `mapstructure:"PreloadConcurrency"`
	Decoder            string   `mapstructure:"Decoder"`
}

// CacheDir 返回磁盘缓存目录：StoragePath/CacheDirName。
func (g GlobalConfig) CacheDir() string {
	return filepath.Join(g.StoragePath, g.CacheDirName)
}

// BlobStoreConfig 描述远端对象存储的访问方式。
type BlobStoreConfig struct {
	Endpoint string `mapstructure:"Endpoint"`
	Bucket   string `mapstructure:"Bucket"`
	Token    string `mapstructure:"Token"`
	Username string `mapstructure:"Username"`
	Password string `mapstructure:"Password"`
}

// HasCredentials 表示是否配置了完整的 Basic 凭证。
func (b BlobStoreConfig) HasCredentials() bool {
	return b.Username != "" && b.Password != ""
}

// AuthMode 输出 `token`、`credentialed` 或 `anonymous`，供日志字段使用。
func (b BlobStoreConfig) AuthMode() string {
	switch {
	case b.Token != "":
		return "token"
	case b.HasCredentials():
		return "credentialed"
	default:
		return "anonymous"
	}
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global    GlobalConfig    `mapstructure:",squash"`
	BlobStore BlobStoreConfig `mapstructure:"BlobStore"`
}
