package task

import (
	"slices"
	"sync"
)

// Signal 是一个具名的广播点，Send 时按注册顺序同步调用所有订阅者
type Signal[T any] struct {
	name      string
	mu        sync.Mutex
	receivers []func(T)
}

func NewSignal[T any](name string) *Signal[T] {
	return &Signal[T]{name: name}
}

// FuncSignal 创建一个只有一个订阅者的 Signal
func FuncSignal[T any](name string, fn func(T)) *Signal[T] {
	s := NewSignal[T](name)
	s.Connect(fn)
	return s
}

// Connect 追加一个订阅者
func (s *Signal[T]) Connect(fn func(T)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivers = append(s.receivers, fn)
}

// Send 在调用方协程中依次执行订阅者，订阅者里可以再 Connect
func (s *Signal[T]) Send(v T) {
	s.mu.Lock()
	receivers := slices.Clone(s.receivers)
	s.mu.Unlock()
	for _, fn := range receivers {
		fn(v)
	}
}

func (s *Signal[T]) Name() string { return s.name }

func (s *Signal[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receivers)
}

// Trigger 是任务每次执行结束后必须全部触发的一组 Signal，
// 用来放行以该任务为前置的其它任务
type Trigger struct {
	mu      sync.Mutex
	signals []*Signal[*Task]
}

func (t *Trigger) Add(s *Signal[*Task]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.signals = append(t.signals, s)
}

// Signals 返回当前注册的 Signal 副本
func (t *Trigger) Signals() []*Signal[*Task] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Signal[*Task](nil), t.signals...)
}

func (t *Trigger) fire(owner *Task) {
	for _, s := range t.Signals() {
		s.Send(owner)
	}
}
