package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/any-hub/asset-hub/internal/blobstore"
	"github.com/any-hub/asset-hub/internal/cache"
	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/metrics"
)

// DefaultMaxFetchBytes 是单个资源的默认下载上限（5 MiB）。
const DefaultMaxFetchBytes int64 = 5 * 1024 * 1024

// Options 注入 Service 的全部协作者。Store、Disk、Decoder 必填，其余可留空。
type Options struct {
	Store       blobstore.Store
	Disk        *cache.Disk
	Memory      *cache.Memory[*Asset]
	Coordinator *fetch.Coordinator[*Asset]
	Decoder     Decoder
	// Encoder 为空时 Upload 返回 ErrNoEncoder。
	Encoder Encoder

	MaxFetchBytes int64
	// PreloadConcurrency 限制 Preload 的并发数，<=0 表示不限。
	PreloadConcurrency int

	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	// NewID 生成上传对象名，默认 uuid.NewString。
	NewID func() string
}

// Service 负责 memory → disk → network 的查找链与上传后的缓存预热。
// 进程内只构建一份，并以指针注入到各个调用方。
type Service struct {
	store   blobstore.Store
	disk    *cache.Disk
	memory  *cache.Memory[*Asset]
	coord   *fetch.Coordinator[*Asset]
	decoder Decoder
	encoder Encoder

	maxFetchBytes      int64
	preloadConcurrency int

	logger  *logrus.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Stats 是服务状态快照。
type Stats struct {
	MemoryEntries int `json:"memory_entries"`
}

// NewService 校验依赖并填充默认值。
func NewService(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, errors.New("blob store is required")
	}
	if opts.Disk == nil {
		return nil, errors.New("disk cache is required")
	}
	if opts.Decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if opts.MaxFetchBytes < 0 {
		return nil, fmt.Errorf("invalid max fetch bytes: %d", opts.MaxFetchBytes)
	}

	s := &Service{
		store:              opts.Store,
		disk:               opts.Disk,
		memory:             opts.Memory,
		coord:              opts.Coordinator,
		decoder:            opts.Decoder,
		encoder:            opts.Encoder,
		maxFetchBytes:      opts.MaxFetchBytes,
		preloadConcurrency: opts.PreloadConcurrency,
		logger:             opts.Logger,
		metrics:            opts.Metrics,
		newID:              opts.NewID,
	}
	if s.memory == nil {
		s.memory = cache.NewMemory[*Asset]()
	}
	if s.coord == nil {
		s.coord = fetch.NewCoordinator[*Asset]()
	}
	if s.maxFetchBytes == 0 {
		s.maxFetchBytes = DefaultMaxFetchBytes
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// Resolve 依次查询内存、磁盘与网络，返回解码后的资源；任何失败都只是未命中。
// 内存命中时同步返回，不触碰磁盘和网络。
func (s *Service) Resolve(ctx context.Context, key string) (*Asset, bool) {
	key = cache.LookupKey(key)
	if key == "" {
		s.metrics.ObserveResolve(metrics.TierMiss)
		return nil, false
	}

	if a, ok := s.memory.Get(key); ok {
		s.metrics.ObserveResolve(metrics.TierMemory)
		return a, true
	}
	if ctx.Err() != nil {
		s.metrics.ObserveResolve(metrics.TierMiss)
		return nil, false
	}

	if a, ok := s.fromDisk(ctx, key); ok {
		s.metrics.ObserveResolve(metrics.TierDisk)
		return a, true
	}

	out := s.coord.Resolve(ctx, key, func(fctx context.Context) (*Asset, error) {
		return s.fetch(fctx, key)
	})
	if out.Shared {
		s.metrics.ObserveShared()
	}
	if !out.OK || out.Value == nil {
		s.metrics.ObserveResolve(metrics.TierMiss)
		if errors.Is(out.Err, context.Canceled) || errors.Is(out.Err, context.DeadlineExceeded) {
			s.logger.WithFields(logrus.Fields{"action": "asset_resolve", "key": key}).
				Debug("caller_gave_up")
		}
		return nil, false
	}

	s.metrics.ObserveResolve(metrics.TierNetwork)
	return out.Value, true
}

// PeekMemory 只查内存层，从不阻塞，供不能等待的调用方使用。
func (s *Service) PeekMemory(key string) (*Asset, bool) {
	return s.memory.Get(cache.LookupKey(key))
}

// Preload 并发 resolve 每个不重复的 key 并等待全部完成；单个 key 未命中不影响其它 key。
func (s *Service) Preload(ctx context.Context, keys []string) {
	var g errgroup.Group
	if s.preloadConcurrency > 0 {
		g.SetLimit(s.preloadConcurrency)
	}

	seen := make(map[string]struct{}, len(keys))
	for _, raw := range keys {
		key := cache.LookupKey(raw)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		g.Go(func() error {
			s.Resolve(ctx, key)
			return nil
		})
	}
	_ = g.Wait()

	s.logger.WithFields(logrus.Fields{
		"action": "asset_preload",
		"keys":   len(seen),
	}).Debug("preload_finished")
}

// Stats 返回当前内存层条目数等诊断信息。
func (s *Service) Stats() Stats {
	return Stats{MemoryEntries: s.memory.Len()}
}

// fromDisk 读取并解码磁盘记录；无法解码的记录视为不存在，继续走网络。
func (s *Service) fromDisk(ctx context.Context, key string) (*Asset, bool) {
	data, ok := s.disk.Read(ctx, key)
	if !ok {
		return nil, false
	}

	a, err := s.decoder.Decode(data)
	if err != nil || a == nil {
		s.logger.WithError(err).
			WithFields(logrus.Fields{"action": "asset_disk_decode", "key": key, "bytes": len(data)}).
			Warn("disk_record_undecodable")
		return nil, false
	}

	s.memory.Set(key, a)
	return a, true
}

// fetch 在协调器内执行，同一 key 同时只会有一个在运行。
func (s *Service) fetch(ctx context.Context, key string) (*Asset, error) {
	// 上一次 fetch 可能刚好在本次挂靠前完成。
	if a, ok := s.memory.Get(key); ok {
		return a, nil
	}

	started := time.Now()
	fields := logrus.Fields{"action": "asset_fetch", "key": key}

	data, err := s.store.Fetch(ctx, key, s.maxFetchBytes)
	if err != nil {
		s.metrics.ObserveFetch(false, time.Since(started))
		s.logger.WithError(err).WithFields(fields).Warn("asset_fetch_failed")
		return nil, err
	}

	a, err := s.decoder.Decode(data)
	if err == nil && a == nil {
		err = errors.New("decoder returned no asset")
	}
	if err != nil {
		s.metrics.ObserveFetch(false, time.Since(started))
		fields["bytes"] = len(data)
		s.logger.WithError(err).WithFields(fields).Warn("asset_decode_failed")
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}

	s.memory.Set(key, a)
	s.disk.Write(ctx, key, data)

	elapsed := time.Since(started)
	s.metrics.ObserveFetch(true, elapsed)
	fields["bytes"] = len(data)
	fields["elapsed_ms"] = elapsed.Milliseconds()
	s.logger.WithFields(fields).Debug("asset_fetched")
	return a, nil
}
