package node

import (
	"context"
	"errors"

	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/runner"
	"github.com/wentf9/flowlight/pkg/task"
)

var _ Node = (*Group)(nil)

// Group 按加入顺序保存子节点，同时维护 name -> Node 的索引
// 重名时索引中后加入的覆盖先加入的，但两者都保留在遍历顺序里
type Group struct {
	name  string
	nodes []Node
	index map[string]Node
}

// Cluster 与 Group 是同一个类型
type Cluster = Group

func NewGroup(name string, nodes ...Node) *Group {
	g := &Group{name: name, index: make(map[string]Node)}
	for _, n := range nodes {
		g.Add(n)
	}
	return g
}

// NewGroupFromHosts 把每个 host 包装成同名的 Machine
func NewGroupFromHosts(name string, hosts ...string) *Group {
	g := NewGroup(name)
	for _, h := range hosts {
		g.AddHost(h)
	}
	return g
}

func NewCluster(hosts ...string) *Cluster {
	return NewGroupFromHosts("cluster", hosts...)
}

func (g *Group) Name() string { return g.name }

func (g *Group) Add(n Node) {
	g.nodes = append(g.nodes, n)
	g.index[n.Name()] = n
}

// AddHost 等价于 Add(Machine(host, name=host))
func (g *Group) AddHost(host string) *Machine {
	m := &Machine{name: host, host: host}
	g.Add(m)
	return m
}

// Get 只查索引，不遍历子节点
func (g *Group) Get(name string) (Node, bool) {
	n, ok := g.index[name]
	return n, ok
}

// Nodes 返回子节点的副本
func (g *Group) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

func (g *Group) Len() int { return len(g.nodes) }

func (g *Group) Machines() []*Machine {
	var machines []*Machine
	for _, n := range g.nodes {
		machines = append(machines, n.Machines()...)
	}
	return machines
}

// Run 按顺序在每个子节点上执行，遇到第一个错误即停止，
// 同时返回已经收集到的结果
func (g *Group) Run(ctx context.Context, cmd string, opts ...models.CommandOption) ([]*models.Response, error) {
	responses := make([]*models.Response, 0, len(g.nodes))
	for _, n := range g.nodes {
		res, err := n.Run(ctx, cmd, opts...)
		responses = append(responses, res...)
		if err != nil {
			return responses, err
		}
	}
	return responses, nil
}

// RunParallel 在所有叶子节点上并发执行，结果顺序与遍历顺序一致
// 失败的节点对应位置为 nil，所有错误合并后返回
func (g *Group) RunParallel(ctx context.Context, cmd string, concurrency uint, opts ...models.CommandOption) ([]*models.Response, error) {
	return runner.Map(ctx, g.Machines(), concurrency, func(ctx context.Context, m *Machine) (*models.Response, error) {
		return m.Exec(ctx, cmd, opts...)
	})
}

// SetConnection 传播给每个子节点，第一个错误时停止
func (g *Group) SetConnection(opts ...Option) error {
	for _, n := range g.nodes {
		if err := n.SetConnection(opts...); err != nil {
			return err
		}
	}
	return nil
}

func (g *Group) RunTask(t *task.Task, args ...any) (task.Result, error) {
	return runTask(g, t, args)
}

// Close 关闭所有子节点的连接
func (g *Group) Close() error {
	var errs []error
	for _, n := range g.nodes {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
