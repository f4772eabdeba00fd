package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// NewDisk 以 dir 为缓存目录构建磁盘层。目录延迟到第一次读写时才创建。
func NewDisk(dir string, logger *logrus.Logger) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Disk{
		dir:    abs,
		logger: logger,
		locks:  make(map[string]*entryLock),
	}, nil
}

// Disk 把原始字节按 DiskFileName(key) 平铺在同一目录下。
// 它只是加速手段：读失败视为未命中，写失败仅记录日志。
// 同一 key 的并发写入通过 entryLock 串行化。
type Disk struct {
	dir    string
	logger *logrus.Logger

	dirMu    sync.Mutex
	dirReady bool

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// Dir 返回缓存目录的绝对路径。
func (d *Disk) Dir() string {
	return d.dir
}

// Path 返回 key 对应的缓存文件路径。
func (d *Disk) Path(key string) string {
	return filepath.Join(d.dir, DiskFileName(key))
}

// Read 读取 key 对应的缓存文件；任何错误都按未命中处理。
func (d *Disk) Read(ctx context.Context, key string) ([]byte, bool) {
	if ctx.Err() != nil {
		return nil, false
	}

	filePath := d.Path(key)
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return nil, false
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		d.logger.WithError(err).
			WithFields(logrus.Fields{"action": "disk_read", "key": key}).
			Warn("disk_cache_read_failed")
		return nil, false
	}
	return data, true
}

// Write 通过临时文件 + rename 原子写入；失败只记录 warn，不向调用方传播。
func (d *Disk) Write(ctx context.Context, key string, data []byte) {
	if err := d.write(ctx, key, data); err != nil {
		d.logger.WithError(err).
			WithFields(logrus.Fields{"action": "disk_write", "key": key, "bytes": len(data)}).
			Warn("disk_cache_write_failed")
	}
}

func (d *Disk) write(ctx context.Context, key string, data []byte) error {
	if err := d.ensureDir(); err != nil {
		return err
	}

	unlock := d.lockEntry(key)
	defer unlock()

	filePath := d.Path(key)
	tempFile, err := os.CreateTemp(d.dir, ".cache-*")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()

	_, err = copyWithContext(ctx, tempFile, bytes.NewReader(data))
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return err
	}
	return nil
}

// ensureDir 只在目录成功创建后才记为就绪，失败时下次调用会重试。
func (d *Disk) ensureDir() error {
	d.dirMu.Lock()
	defer d.dirMu.Unlock()

	if d.dirReady {
		return nil
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	d.dirReady = true
	return nil
}

func (d *Disk) lockEntry(key string) func() {
	d.mu.Lock()
	lock := d.locks[key]
	if lock == nil {
		lock = &entryLock{}
		d.locks[key] = lock
	}
	lock.refs++
	d.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		d.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(d.locks, key)
		}
		d.mu.Unlock()
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
