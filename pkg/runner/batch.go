// Package runner 在有界的 Pool 上并发处理一组输入，结果保持输入顺序。
package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/wentf9/flowlight/pkg/logger"
)

type TaskFunc[I, O any] func(ctx context.Context, item I) (O, error)

// Result 是单个输入的处理结果，Index 为输入中的位置
type Result[I, O any] struct {
	Index int
	Item  I
	Value O
	Error error
}

// RunParallel 并发处理 items，结果按完成顺序写入通道，全部完成后通道关闭
// concurrency 为 0 时使用 DefaultConcurrency
func RunParallel[I, O any](ctx context.Context, items []I, concurrency uint, task TaskFunc[I, O]) <-chan Result[I, O] {
	// 缓冲区大小设为输入数量，防止阻塞 worker
	results := make(chan Result[I, O], len(items))
	p := NewPool(concurrency)
	go func() {
		for i, item := range items {
			p.Go(func() error {
				results <- runOne(ctx, i, item, task)
				return nil
			})
		}
		// 单项的错误已经写入 Result
		_ = p.Wait()
		close(results)
	}()
	return results
}

func runOne[I, O any](ctx context.Context, i int, item I, task TaskFunc[I, O]) Result[I, O] {
	res := Result[I, O]{Index: i, Item: item}
	if err := ctx.Err(); err != nil {
		res.Error = err
		return res
	}
	err := protect(func() (err error) {
		res.Value, err = task(ctx, item)
		return err
	})
	var pe *PanicError
	if errors.As(err, &pe) {
		logger.Logger.Error("worker panicked", "index", i, "panic", pe.Value)
		err = fmt.Errorf("item %d %w", i, err)
	}
	res.Error = err
	return res
}

// Map 等待全部完成，values[i] 对应 items[i]，失败位置为零值，所有错误合并返回
func Map[I, O any](ctx context.Context, items []I, concurrency uint, task TaskFunc[I, O]) ([]O, error) {
	values := make([]O, len(items))
	errs := make([]error, len(items))
	for r := range RunParallel(ctx, items, concurrency, task) {
		values[r.Index] = r.Value
		errs[r.Index] = r.Error
	}
	return values, errors.Join(errs...)
}
