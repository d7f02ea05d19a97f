// Package node 描述可以执行命令的目标：单台 Machine，以及由节点组成的 Group/Cluster。
package node

import (
	"context"

	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/task"
)

// Node 是 Machine 和 Group 的公共接口
type Node interface {
	Name() string
	// Run 执行命令，Machine 返回一个 Response，Group 按叶子节点的遍历顺序返回
	Run(ctx context.Context, cmd string, opts ...models.CommandOption) ([]*models.Response, error)
	// SetConnection 为 Machine 重建连接，或者传播给 Group 下的每个 Machine
	SetConnection(opts ...Option) error
	// RunTask 以节点本身作为第一个参数调用任务
	RunTask(t *task.Task, args ...any) (task.Result, error)
	// Machines 返回所有叶子节点
	Machines() []*Machine
	Close() error
}

func runTask(n Node, t *task.Task, args []any) (task.Result, error) {
	if t == nil {
		return task.Result{}, ErrNotATask
	}
	return t.Run(append([]any{n}, args...)...), nil
}
