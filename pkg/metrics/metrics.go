// Package metrics 定义 Prometheus 指标，方法在 nil 接收者上什么都不做。
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/task"
)

type Metrics struct {
	Commands        *prometheus.CounterVec
	CommandDuration prometheus.Histogram
	Tasks           *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	Requests        *prometheus.CounterVec
}

// New 创建并注册全部指标
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowlight_commands_total",
				Help: "Commands executed per host, by outcome",
			},
			[]string{"host", "outcome"},
		),
		CommandDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowlight_command_batch_duration_seconds",
				Help:    "Wall time of running one command over a node",
				Buckets: prometheus.DefBuckets,
			},
		),
		Tasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowlight_task_runs_total",
				Help: "Task invocations by final state",
			},
			[]string{"task", "state"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "flowlight_task_duration_seconds",
				Help: "Duration of completed task invocations",
			},
			[]string{"task"},
		),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowlight_http_requests_total",
				Help: "HTTP requests by status code",
			},
			[]string{"code"},
		),
	}
	reg.MustRegister(m.Commands, m.CommandDuration, m.Tasks, m.TaskDuration, m.Requests)
	return m
}

// ObserveResponses 记录一次批量执行的结果，err 非 nil 时额外记一次 error
func (m *Metrics) ObserveResponses(responses []*models.Response, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.CommandDuration.Observe(elapsed.Seconds())
	for _, r := range responses {
		if r == nil {
			continue
		}
		outcome := "ok"
		if !r.Success() {
			outcome = "exit_" + strconv.Itoa(r.ExitCode)
		}
		m.Commands.WithLabelValues(r.Host(), outcome).Inc()
	}
	if err != nil {
		m.Commands.WithLabelValues("", "error").Inc()
	}
}

// Instrument 订阅任务的生命周期 Signal
func (m *Metrics) Instrument(t *task.Task) {
	if m == nil {
		return
	}
	name := t.Name()
	t.OnComplete.Connect(func(meta *task.Meta) {
		m.Tasks.WithLabelValues(name, task.Completed.String()).Inc()
		m.TaskDuration.WithLabelValues(name).Observe(meta.Duration().Seconds())
	})
	t.OnError.Connect(func(error) {
		m.Tasks.WithLabelValues(name, task.Failed.String()).Inc()
	})
}

// ObserveSkipped 跳过的任务不会触发 Signal，需要调用方记录
func (m *Metrics) ObserveSkipped(t *task.Task) {
	if m == nil {
		return
	}
	m.Tasks.WithLabelValues(t.Name(), task.Skipped.String()).Inc()
}

func (m *Metrics) ObserveRequest(code int) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(strconv.Itoa(code)).Inc()
}
