package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/pkg/api"
	"github.com/wentf9/flowlight/pkg/metrics"
)

type ServeOptions struct {
	ConnOptions
	Config api.ServerConfig
}

func NewCmdServe() *cobra.Command {
	o := &ServeOptions{Config: api.DefaultServerConfig()}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 接口",
		Long: `启动 HTTP 接口,通过 GET /<主机列表>/<url编码的命令> 执行命令,
主机之间用逗号分隔。/metrics 提供 Prometheus 指标。
示例: curl http://127.0.0.1:3600/web,db1/uptime`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, provider, err := loadFleet()
			if err != nil {
				return err
			}
			if err := o.ConnOptions.Apply(provider); err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			handler := api.NewHandler(provider, api.WithMetrics(metrics.New(reg), reg))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return api.ListenAndServe(ctx, handler, o.Config)
		},
	}
	o.ConnOptions.AddFlags(cmd)
	cmd.Flags().StringVar(&o.Config.Addr, "addr", api.DefaultAddr, "监听地址")
	cmd.Flags().DurationVar(&o.Config.ShutdownTimeout, "shutdown-timeout", o.Config.ShutdownTimeout, "优雅关闭的等待时间")
	return cmd
}

func init() {
	rootCmd.AddCommand(NewCmdServe())
}
