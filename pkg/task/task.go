// Package task 把一个函数包装成带前置依赖、执行条件和生命周期通知的任务。
//
// 一个 Task 最多只有一个前置任务 (After)。前置任务每次执行结束 (成功或失败)
// 都会通过 Trigger 放行一次；等待发生在调用 Run 的协程里，包内不会启动协程。
// 同一个 Task 实例不支持被多个协程并发调用。
package task

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wentf9/flowlight/pkg/logger"
)

// Func 是任务体，args 由调用方透传，Node.RunTask 会把节点本身放在第一个
type Func func(meta *Meta, args ...any) (any, error)

type Task struct {
	name    string
	fn      Func
	meta    *Meta
	trigger *Trigger

	OnStart    *Signal[*Meta]
	OnComplete *Signal[*Meta]
	OnError    *Signal[error]

	// 容量为 1 的事件，放行时非阻塞写入，等待时读出即清除
	event  chan struct{}
	after  *Task
	onlyIf func() bool

	mu    sync.Mutex
	state State
}

type Option func(*Task)

// After 声明前置任务，只有它执行结束后本任务才会开始
func After(pred *Task) Option {
	return func(t *Task) {
		t.after = pred
	}
}

// OnlyIf 声明执行条件，返回 false 时任务被跳过
func OnlyIf(pred func() bool) Option {
	return func(t *Task) {
		t.onlyIf = pred
	}
}

func WithName(name string) Option {
	return func(t *Task) {
		t.name = name
	}
}

// New 立即用 fn 构造任务
func New(fn Func, opts ...Option) *Task {
	t := &Task{
		fn:      fn,
		trigger: &Trigger{},
		event:   make(chan struct{}, 1),
	}
	t.meta = newMeta(t)
	for _, opt := range opts {
		opt(t)
	}
	t.OnStart = FuncSignal("start", t.start)
	t.OnComplete = FuncSignal("complete", t.complete)
	t.OnError = FuncSignal("error", t.logFailure)

	if t.after != nil {
		t.meta.RunAfter = t.after
		t.after.trigger.Add(FuncSignal("release "+t.Name(), func(*Task) { t.release() }))
	}
	return t
}

// Deferred 先确定选项，返回的工厂函数在拿到任务体时才构造任务
func Deferred(opts ...Option) func(Func) *Task {
	return func(fn Func) *Task {
		return New(fn, opts...)
	}
}

// Run 执行一次任务
//
// 条件不满足时直接返回 ErrConditionNotMet，不等待、不执行、不触发 Trigger；
// 有前置任务时阻塞到它放行一次。任务体返回的错误和 panic 都记录在 Result 中，
// 不会向上传播。除跳过外，每次调用结束时所有 Trigger 恰好触发一次。
func (t *Task) Run(args ...any) Result {
	if t.onlyIf != nil && !t.onlyIf() {
		t.setState(Skipped)
		logger.Logger.Debug("task skipped", "task", t.Name())
		return Result{Err: ErrConditionNotMet}
	}
	if t.after != nil {
		t.setState(Waiting)
		<-t.event
	}
	t.setState(Running)
	defer t.trigger.fire(t)
	return t.invoke(args)
}

func (t *Task) invoke(args []any) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{Value: r, Stack: debug.Stack()}
			t.fail(err)
			res = Result{Err: err}
		}
	}()
	t.OnStart.Send(t.meta)
	v, err := t.fn(t.meta, args...)
	if err != nil {
		t.fail(err)
		return Result{Err: err}
	}
	t.OnComplete.Send(t.meta)
	t.setState(Completed)
	return Result{Value: v}
}

func (t *Task) fail(err error) {
	t.setState(Failed)
	t.OnError.Send(err)
}

func (t *Task) release() {
	select {
	case t.event <- struct{}{}:
	default:
	}
}

func (t *Task) start(m *Meta) {
	m.StartedAt = time.Now()
	m.RunID = uuid.NewString()
}

func (t *Task) complete(m *Meta) {
	m.FinishedAt = time.Now()
}

func (t *Task) logFailure(err error) {
	stack := debug.Stack()
	if pe, ok := err.(*PanicError); ok {
		stack = pe.Stack
	}
	logger.Logger.Error("task failed", "task", t.Name(), "run_id", t.meta.RunID, "error", err, "stack", string(stack))
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// State 返回最近一次调用的阶段
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Name 未设置名称时返回 "task"
func (t *Task) Name() string {
	if t.name == "" {
		return "task"
	}
	return t.name
}

func (t *Task) Meta() *Meta       { return t.meta }
func (t *Task) Trigger() *Trigger { return t.trigger }

// Predecessor 返回前置任务，没有时为 nil
func (t *Task) Predecessor() *Task { return t.after }
