package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/cmd/version"
	"github.com/wentf9/flowlight/pkg/config"
	"github.com/wentf9/flowlight/pkg/logger"
)

var fleetPath, keyPath string

var rootCmd = &cobra.Command{
	Use:   "flowlight [command] [flags]",
	Short: "flowlight 在一组主机上执行命令和任务流",
	Long: `flowlight 在本机或通过 SSH 在远程主机上执行命令。
主机、分组和连接参数保存在 fleet 文件中(默认 ~/.flowlight/fleet.yaml)。
支持批量执行、按依赖顺序运行任务流、文件上传以及 HTTP 接口。`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			version.Fprint(cmd.OutOrStdout())
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			level = "debug"
		}
		if !logger.SetLogLevel(level) {
			return fmt.Errorf("unknown log level %q", level)
		}
		return nil
	},
}

// Execute 由 main 调用
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadFleet 读取 --fleet 指定的文件，指定了 --key-file 时解密密码字段
func loadFleet() (config.Store, *config.Provider, error) {
	var opts []config.StoreOption
	if keyPath != "" {
		opts = append(opts, config.WithKeyFile(keyPath))
	}
	store := config.NewFileStore(fleetPath, opts...)
	fleet, err := store.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("加载 fleet 文件失败: %w", err)
	}
	return store, config.NewProvider(fleet), nil
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "显示版本信息")
	rootCmd.PersistentFlags().Bool("debug", false, "开启调试模式")
	rootCmd.PersistentFlags().String("log-level", "error", "日志级别 debug|info|warn|error")
	rootCmd.PersistentFlags().StringVarP(&fleetPath, "fleet", "f", config.DefaultPath, "fleet 文件路径")
	rootCmd.PersistentFlags().StringVar(&keyPath, "key-file", "", "指定密钥文件后,fleet 文件中的密码字段加密保存(例如 "+config.DefaultKeyPath+")")
}
