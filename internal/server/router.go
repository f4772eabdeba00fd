package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/asset"
	"github.com/any-hub/asset-hub/internal/logging"
)

// AssetService describes the cache operations the HTTP layer depends on. It
// allows injecting fakes during tests.
type AssetService interface {
	Resolve(ctx context.Context, key string) (*asset.Asset, bool)
	PeekMemory(key string) (*asset.Asset, bool)
	Preload(ctx context.Context, keys []string)
	Upload(ctx context.Context, data []byte, namespace string) (string, error)
	Stats() asset.Stats
}

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	Service    AssetService
	ListenPort int
	// BodyLimit 限制上传请求体大小，<=0 时使用 DefaultBodyLimit。
	BodyLimit int
}

// DefaultBodyLimit 与单个资源的默认下载上限一致（5 MiB）。
const DefaultBodyLimit = int(asset.DefaultMaxFetchBytes)

const contextKeyRequestID = "_assethub_request_id"

// NewApp builds a Fiber application with the asset routes, request ID
// middleware and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Service == nil {
		return nil, errors.New("asset service is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	bodyLimit := opts.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		// key 中的 %2F 等需要在进入 handler 前解码。
		UnescapePath: true,
		// Params/Query 返回的字符串会作为缓存 map 的 key 长期保存，不能引用 fasthttp 的复用缓冲区。
		Immutable: true,
		BodyLimit: bodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts.Logger))

	h := &assetHandler{service: opts.Service, logger: opts.Logger}
	app.Get("/assets/*", h.resolve)
	app.Get("/-/peek/*", h.peek)
	app.Post("/-/preload", h.preload)
	app.Post("/-/upload", h.upload)

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		if logger.IsLevelEnabled(logrus.DebugLevel) {
			logger.WithFields(logging.RequestFields(
				reqID,
				c.Method(),
				string(c.Request().URI().Path()),
				c.Response().StatusCode(),
			)).Debug("request_completed")
		}
		return err
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func renderError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}
