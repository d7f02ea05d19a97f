// Package api 通过 URL 路径执行命令：GET /<逗号分隔的主机>/<url 编码的命令>。
package api

import (
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wentf9/flowlight/pkg/logger"
	"github.com/wentf9/flowlight/pkg/metrics"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/node"
)

// Usage 任何错误都返回这段说明和 400
const Usage = "Usage:: http://127.0.0.1:3600/<machines>/<command>"

// ClusterBuilder 把主机列表解析为 Cluster，config.Provider 实现了它
type ClusterBuilder interface {
	Cluster(inputs ...string) (*node.Cluster, error)
}

type Server struct {
	builder  ClusterBuilder
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

type Option func(*Server)

// WithMetrics 记录执行结果，并在 /metrics 上暴露 gatherer 中的指标
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

func NewHandler(builder ClusterBuilder, opts ...Option) http.Handler {
	s := &Server{builder: builder}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/{hosts}/{command}", s.run)
	r.NotFound(s.usage)
	r.MethodNotAllowed(s.usage)
	return r
}

// requestID 为每个请求生成 id，写入响应头和日志
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logger.Logger.Debug("http request", "request_id", id, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) run(w http.ResponseWriter, r *http.Request) {
	hosts, err := pathParam(r, "hosts")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	command, err := pathParam(r, "command")
	if err != nil || strings.TrimSpace(command) == "" {
		s.fail(w, r, err)
		return
	}

	cluster, err := s.builder.Cluster(strings.Split(hosts, ",")...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer cluster.Close()

	start := time.Now()
	responses, err := cluster.Run(r.Context(), command)
	s.metrics.ObserveResponses(responses, err, time.Since(start))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(render(responses)))
	s.metrics.ObserveRequest(http.StatusOK)
}

func render(responses []*models.Response) string {
	blocks := make([]string, 0, len(responses))
	for _, resp := range responses {
		blocks = append(blocks, "<h1>"+html.EscapeString(resp.Host())+"</h1><pre>"+html.EscapeString(resp.String())+"</pre>")
	}
	return strings.Join(blocks, "\n")
}

// pathParam 命令中含有 %2F 等编码时 chi 按原始路径匹配，需要自己解码
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		logger.Logger.Warn("request failed", "path", r.URL.Path, "error", err)
	}
	s.usage(w, r)
}

func (s *Server) usage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write([]byte(Usage))
	s.metrics.ObserveRequest(http.StatusBadRequest)
}
