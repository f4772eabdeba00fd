package fetch

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Func 执行真正的网络读取。传入的 ctx 不会随调用方取消。
type Func[V any] func(ctx context.Context) (V, error)

// Outcome 描述一次 Resolve 的结果。
type Outcome[V any] struct {
	Value V
	// OK 为 false 表示 fetch 失败或调用方放弃等待。
	OK bool
	// Err 是 fetch 返回的原始错误，调用方放弃等待时为 ctx.Err()。
	Err error
	// Shared 表示结果同时交付给了其他等待者。
	Shared bool
}

// Coordinator 保证同一 key 同时最多只有一个 Func 在执行。
type Coordinator[V any] struct {
	group singleflight.Group
}

// NewCoordinator 构建空的协调器，整个进程共享一份实例。
func NewCoordinator[V any]() *Coordinator[V] {
	return &Coordinator[V]{}
}

// Resolve 若 key 已有进行中的 fetch 则挂靠等待，否则启动 fn 且只调用一次。
// fn 在 context.WithoutCancel(ctx) 下运行：调用方取消只会提前返回未命中，
// fetch 本身仍会完成，所有等待者拿到同一个结果。
func (c *Coordinator[V]) Resolve(ctx context.Context, key string, fn Func[V]) Outcome[V] {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return Outcome[V]{Err: res.Err, Shared: res.Shared}
		}
		v, _ := res.Val.(V)
		return Outcome[V]{Value: v, OK: true, Shared: res.Shared}
	case <-ctx.Done():
		return Outcome[V]{Err: ctx.Err()}
	}
}
