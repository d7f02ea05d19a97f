package flow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wentf9/flowlight/pkg/executor"
	"github.com/wentf9/flowlight/pkg/logger"
	"github.com/wentf9/flowlight/pkg/metrics"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/node"
	"github.com/wentf9/flowlight/pkg/task"
	"golang.org/x/sync/errgroup"
)

// metaResponses 任务体把收集到的 Response 记在 Meta 的这个键下
const metaResponses = "responses"

// Resolver 把 group/hosts 解析为 Cluster，config.Provider 实现了它
type Resolver interface {
	Cluster(inputs ...string) (*node.Cluster, error)
}

// Report 是单个任务的执行结果
type Report struct {
	Task      string
	State     task.State
	Responses []*models.Response
	Err       error
	RunID     string
	Duration  time.Duration
}

type Runner struct {
	resolver Resolver
	metrics  *metrics.Metrics
	local    *executor.LocalExecutor
	onReport func(Report)
}

type Option func(*Runner)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithReportHook 每个任务结束时调用，可能被多个协程同时调用
func WithReportHook(fn func(Report)) Option {
	return func(r *Runner) { r.onReport = fn }
}

func NewRunner(resolver Resolver, opts ...Option) *Runner {
	r := &Runner{resolver: resolver, local: executor.NewLocalExecutor()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 每个任务在独立的协程中执行，等待前置任务时只阻塞自己的协程
// 返回的 Report 与任务在文件中的顺序一致，失败的任务合并为一个错误
func (r *Runner) Run(ctx context.Context, f *Flow) ([]Report, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	clusters := make([]*node.Cluster, len(f.Steps))
	defer func() {
		for _, c := range clusters {
			if c != nil {
				c.Close()
			}
		}
	}()
	for i, s := range f.Steps {
		c, err := r.resolver.Cluster(s.targets()...)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", s.Name, err)
		}
		clusters[i] = c
	}
	tasks := r.buildTasks(ctx, f)

	reports := make([]Report, len(f.Steps))
	var g errgroup.Group
	for i, s := range f.Steps {
		g.Go(func() error {
			t := tasks[s.Name]
			res, err := clusters[i].RunTask(t)
			if err != nil {
				res.Err = err
			}
			reports[i] = r.report(t, res)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, rep := range reports {
		if rep.State == task.Failed {
			errs = append(errs, fmt.Errorf("task %q: %w", rep.Task, rep.Err))
		}
	}
	return reports, errors.Join(errs...)
}

// buildTasks 先构造前置任务，保证 After 拿到的是已存在的 Task
func (r *Runner) buildTasks(ctx context.Context, f *Flow) map[string]*task.Task {
	steps := make(map[string]Step, len(f.Steps))
	for _, s := range f.Steps {
		steps[s.Name] = s
	}
	tasks := make(map[string]*task.Task, len(f.Steps))
	var build func(s Step) *task.Task
	build = func(s Step) *task.Task {
		if t, ok := tasks[s.Name]; ok {
			return t
		}
		opts := []task.Option{task.WithName(s.Name)}
		if s.After != "" {
			opts = append(opts, task.After(build(steps[s.After])))
		}
		if s.OnlyIf != "" {
			opts = append(opts, task.OnlyIf(r.condition(ctx, s.OnlyIf)))
		}
		t := task.New(r.body(ctx, s), opts...)
		r.metrics.Instrument(t)
		tasks[s.Name] = t
		return t
	}
	for _, s := range f.Steps {
		build(s)
	}
	return tasks
}

func (r *Runner) body(ctx context.Context, s Step) task.Func {
	return func(meta *task.Meta, args ...any) (any, error) {
		n := args[0].(node.Node)
		opts := []models.CommandOption{models.WithEnv(s.Env)}
		if s.Timeout > 0 {
			opts = append(opts, models.WithCommandTimeout(s.Timeout))
		}

		start := time.Now()
		var responses []*models.Response
		var err error
		if g, ok := n.(*node.Group); ok && s.Parallel > 0 {
			responses, err = g.RunParallel(ctx, s.Cmd, s.Parallel, opts...)
		} else {
			responses, err = n.Run(ctx, s.Cmd, opts...)
		}
		r.metrics.ObserveResponses(responses, err, time.Since(start))
		_ = meta.Set(metaResponses, responses)
		if err != nil {
			return responses, err
		}
		for _, resp := range responses {
			if !resp.Success() {
				return responses, fmt.Errorf("%s exited with code %d", resp.Host(), resp.ExitCode)
			}
		}
		return responses, nil
	}
}

// condition 在本机执行判断命令，退出码为 0 时返回 true
func (r *Runner) condition(ctx context.Context, cmd string) func() bool {
	return func() bool {
		resp, err := r.local.Exec(ctx, models.NewCommand(cmd, models.WithCommandTimeout(0)))
		if err != nil {
			logger.Logger.Warn("only_if command failed", "cmd", cmd, "error", err)
			return false
		}
		return resp.Success()
	}
}

func (r *Runner) report(t *task.Task, res task.Result) Report {
	meta := t.Meta()
	rep := Report{
		Task:  t.Name(),
		State: t.State(),
		Err:   res.Err,
	}
	if rep.State == task.Skipped {
		r.metrics.ObserveSkipped(t)
	} else {
		rep.RunID = meta.RunID
		rep.Duration = meta.Duration()
		if v, ok := meta.Get(metaResponses); ok {
			rep.Responses, _ = v.([]*models.Response)
		}
	}
	logger.Logger.Info("task finished", "task", rep.Task, "state", rep.State, "run_id", rep.RunID, "error", rep.Err)
	if r.onReport != nil {
		r.onReport(rep)
	}
	return rep
}
