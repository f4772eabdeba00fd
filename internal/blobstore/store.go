package blobstore

import (
	"context"
	"errors"
	"fmt"
)

// Store 是远端对象存储的最小契约。路径形如 <category>/<ownerId>/<objectId>.<ext>。
type Store interface {
	// Fetch 读取 path 的完整内容；超过 maxBytes 时必须尽早失败并返回 ErrTooLarge，
	// 不得缓冲超出上限的数据。
	Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error)

	// Upload 以 contentType 写入 path，覆盖已有对象。
	Upload(ctx context.Context, path string, data []byte, contentType string) error
}

var (
	// ErrNotFound 表示远端不存在该对象。
	ErrNotFound = errors.New("blob not found")
	// ErrTooLarge 表示对象超过调用方给定的大小上限。
	ErrTooLarge = errors.New("blob exceeds size limit")
)

// StatusError 记录除 404 以外的非 2xx 响应。
type StatusError struct {
	Op     string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.Path, e.Status)
}
