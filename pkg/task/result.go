package task

import (
	"errors"
	"fmt"
)

// ErrConditionNotMet 在 OnlyIf 条件不满足、任务被跳过时返回
var ErrConditionNotMet = errors.New("run condition check is failed")

// State 描述任务最近一次调用所处的阶段
type State int

const (
	Pending State = iota
	Waiting
	Skipped
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Waiting:
		return "waiting"
	case Skipped:
		return "skipped"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result 是一次调用的结果，Err 为 nil 时表示成功
type Result struct {
	Value any
	Err   error
}

func (r Result) OK() bool { return r.Err == nil }

// PanicError 包装任务体中的 panic
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap 在 panic 值本身是 error 时返回它，例如 runtime.Error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
