package runner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/wentf9/flowlight/pkg/logger"
)

// DefaultConcurrency 未指定并发数时使用
const DefaultConcurrency = 5

// PanicError 是任务 panic 被恢复后得到的错误
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panicked: %v", e.Value)
}

// Pool 限制同时运行的任务数，任务的错误和 panic 都在 Wait 中合并返回
type Pool struct {
	limit chan struct{}
	wg    sync.WaitGroup

	mu   sync.Mutex
	errs []error
}

// NewPool concurrency 为 0 时使用 DefaultConcurrency
func NewPool(concurrency uint) *Pool {
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}
	return &Pool{limit: make(chan struct{}, concurrency)}
}

// Go 提交一个任务，拿到许可后才开始执行
func (p *Pool) Go(fn func() error) {
	p.wg.Go(func() {
		p.limit <- struct{}{}
		defer func() { <-p.limit }()
		if err := protect(fn); err != nil {
			var pe *PanicError
			if errors.As(err, &pe) {
				logger.Logger.Error("worker panicked", "panic", pe.Value)
			}
			p.mu.Lock()
			p.errs = append(p.errs, err)
			p.mu.Unlock()
		}
	})
}

// Wait 等待全部任务结束，返回按完成顺序合并的错误
func (p *Pool) Wait() error {
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.errs...)
}

func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return fn()
}
