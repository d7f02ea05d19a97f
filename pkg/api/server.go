package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/wentf9/flowlight/pkg/logger"
)

const DefaultAddr = ":3600"

// ServerConfig http.Server 的超时配置
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            DefaultAddr,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    5 * time.Minute, // 命令可能执行很久
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Serve 在 ln 上提供服务，ctx 结束时优雅关闭
func Serve(ctx context.Context, ln net.Listener, handler http.Handler, cfg ServerConfig) error {
	server := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("server starting", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Logger.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Logger.Info("server stopped gracefully")
	return nil
}

// ListenAndServe 监听 cfg.Addr 后调用 Serve
func ListenAndServe(ctx context.Context, handler http.Handler, cfg ServerConfig) error {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, handler, cfg)
}
