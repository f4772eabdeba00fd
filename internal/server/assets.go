package server

import (
	"bytes"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/opencontainers/go-digest"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/asset"
	"github.com/any-hub/asset-hub/internal/imaging"
	"github.com/any-hub/asset-hub/internal/logging"
)

type assetHandler struct {
	service AssetService
	logger  *logrus.Logger
}

type preloadRequest struct {
	Keys []string `json:"keys"`
}

// resolve 走完整的 memory → disk → network 链路。
func (h *assetHandler) resolve(c fiber.Ctx) error {
	key := strings.Clone(c.Params("*"))
	a, ok := h.service.Resolve(c.Context(), key)
	if !ok {
		return renderError(c, fiber.StatusNotFound, "asset_not_found")
	}
	return h.send(c, key, "resolved", a)
}

// peek 只读内存层，从不阻塞。
func (h *assetHandler) peek(c fiber.Ctx) error {
	key := strings.Clone(c.Params("*"))
	a, ok := h.service.PeekMemory(key)
	if !ok {
		return renderError(c, fiber.StatusNotFound, "asset_not_found")
	}
	return h.send(c, key, "memory", a)
}

func (h *assetHandler) send(c fiber.Ctx, key, tier string, a *asset.Asset) error {
	data := a.Bytes()
	c.Set(fiber.HeaderContentType, a.MediaType())
	c.Set("X-Asset-Digest", digest.FromBytes(data).String())

	h.logger.WithFields(logging.AssetFields(key, tier, len(data))).
		WithField("request_id", RequestID(c)).
		Debug("asset_served")
	return c.Send(data)
}

func (h *assetHandler) preload(c fiber.Ctx) error {
	var req preloadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return renderError(c, fiber.StatusBadRequest, "invalid_body")
	}
	h.service.Preload(c.Context(), req.Keys)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *assetHandler) upload(c fiber.Ctx) error {
	// c.Body() 只在 handler 生命周期内有效，上传会把内容写进缓存，需要复制。
	data := bytes.Clone(c.Body())
	key, err := h.service.Upload(c.Context(), data, strings.Clone(c.Query("namespace")))
	if err != nil {
		status, code := uploadErrorStatus(err)
		return renderError(c, status, code)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"key": key})
}

// uploadErrorStatus 把上传错误映射为 HTTP 状态码与错误码。
func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, asset.ErrEmptyUpload):
		return fiber.StatusBadRequest, "empty_upload"
	case errors.Is(err, asset.ErrInvalidNamespace):
		return fiber.StatusBadRequest, "invalid_namespace"
	case errors.Is(err, asset.ErrUnauthenticated):
		return fiber.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, imaging.ErrNotImage):
		return fiber.StatusBadRequest, "invalid_image"
	case errors.Is(err, asset.ErrNoEncoder):
		return fiber.StatusNotImplemented, "upload_disabled"
	default:
		return fiber.StatusBadGateway, "upload_failed"
	}
}
