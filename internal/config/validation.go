package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

var supportedDecoders = map[string]struct{}{
	"image": {},
	"raw":   {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("Global.LogLevel", "无法识别的日志级别")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("Global.LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("Global.LogMaxBackups", "不能为负数")
	}
	if strings.TrimSpace(g.StoragePath) == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if strings.ContainsAny(g.CacheDirName, `/\`) || g.CacheDirName == "." || g.CacheDirName == ".." {
		return newFieldError("Global.CacheDirName", "必须是单级目录名")
	}
	if g.MaxFetchBytes <= 0 {
		return newFieldError("Global.MaxFetchBytes", "必须大于 0")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if g.JPEGQuality < 1 || g.JPEGQuality > 100 {
		return newFieldError("Global.JPEGQuality", "必须在 1-100")
	}
	if g.PreloadConcurrency < 0 {
		return newFieldError("Global.PreloadConcurrency", "不能为负数")
	}
	if _, ok := supportedDecoders[g.Decoder]; !ok {
		return newFieldError("Global.Decoder", "仅支持 image|raw")
	}

	return c.BlobStore.validate()
}

func (b BlobStoreConfig) validate() error {
	if err := validateEndpoint(b.Endpoint); err != nil {
		return fmt.Errorf("%s: %w", blobStoreField("Endpoint"), err)
	}
	if b.Bucket == "" {
		return newFieldError(blobStoreField("Bucket"), "不能为空")
	}
	if (b.Username == "") != (b.Password == "") {
		return newFieldError(blobStoreField("Username/Password"), "必须同时提供或同时留空")
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("缺少对象存储地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}
