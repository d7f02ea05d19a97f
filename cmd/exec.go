package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/cmd/utils"
	"github.com/wentf9/flowlight/pkg/config"
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/node"
)

// ConnOptions 命令行上的连接参数，覆盖 fleet 文件中的配置
type ConnOptions struct {
	User     string
	Port     int
	Password string
	KeyFile  string
	KeyPass  string
	Timeout  time.Duration
	AskPass  bool
}

func (o *ConnOptions) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.User, "user", "u", "", "SSH用户名")
	cmd.Flags().IntVarP(&o.Port, "port", "p", 0, "SSH端口")
	cmd.Flags().StringVarP(&o.Password, "password", "P", "", "SSH密码")
	cmd.Flags().StringVarP(&o.KeyFile, "key", "i", "", "SSH私钥文件路径")
	cmd.Flags().StringVarP(&o.KeyPass, "key_pass", "w", "", "SSH私钥密码")
	cmd.Flags().DurationVar(&o.Timeout, "timeout", 0, "建立连接的超时")
	cmd.Flags().BoolVar(&o.AskPass, "ask-pass", false, "从终端读取SSH密码")
	cmd.MarkFlagsMutuallyExclusive("password", "ask-pass")
}

// Apply 把命令行参数转换为连接选项并交给 provider
func (o *ConnOptions) Apply(p *config.Provider, extra ...node.Option) error {
	if o.AskPass {
		if !utils.IsTerminal() {
			return fmt.Errorf("--ask-pass 需要在终端中使用")
		}
		pass, err := utils.ReadPasswordFromTerminal("请输入SSH密码: ")
		if err != nil {
			return err
		}
		o.Password = pass
	}

	var opts []node.Option
	if o.User != "" {
		opts = append(opts, node.WithUsername(o.User))
	}
	if o.Port != 0 {
		opts = append(opts, node.WithPort(o.Port))
	}
	if o.Password != "" {
		opts = append(opts, node.WithPassword(o.Password))
	}
	if o.KeyFile != "" {
		opts = append(opts, node.WithKeyFile(o.KeyFile))
	}
	if o.KeyPass != "" {
		opts = append(opts, node.WithPassphrase(o.KeyPass))
	}
	if o.Timeout > 0 {
		opts = append(opts, node.WithTimeout(o.Timeout))
	}
	p.SetOverrides(append(opts, extra...)...)
	return nil
}

type ExecOptions struct {
	ConnOptions
	Targets    []string
	Command    string
	Parallel   uint
	Stream     bool
	ChunkSize  int
	Env        []string
	// CmdTimeout 为 0 时命令不限时
	CmdTimeout time.Duration

	out io.Writer
}

func NewExecOptions() *ExecOptions {
	return &ExecOptions{out: os.Stdout}
}

func NewCmdExec() *cobra.Command {
	o := NewExecOptions()
	cmd := &cobra.Command{
		Use:   "exec <targets> <command...>",
		Short: "在一个或多个主机上执行命令",
		Long: `在一个或多个主机上执行命令,目标用逗号分隔,可以是分组名、主机ID、别名或地址。
回环地址直接在本机执行,其余主机通过SSH执行。
用法示例:
flowlight exec web uptime
flowlight exec web,db1 -- df -h
flowlight exec 10.0.0.5 --parallel 0 --stream "tail -n 100 /var/log/syslog"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Complete(cmd, args)
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}
	o.ConnOptions.AddFlags(cmd)
	cmd.Flags().UintVar(&o.Parallel, "parallel", 1, "并行执行的主机数,1为逐台执行且遇错停止,0为默认并发数")
	cmd.Flags().BoolVar(&o.Stream, "stream", false, "分块流式读取输出(仅远程主机)")
	cmd.Flags().IntVar(&o.ChunkSize, "chunk", 0, "流式读取的分块大小")
	cmd.Flags().StringArrayVarP(&o.Env, "env", "e", nil, "环境变量 KEY=VALUE")
	cmd.Flags().DurationVar(&o.CmdTimeout, "cmd-timeout", 0, "命令执行超时,0为不限时")
	return cmd
}

func (o *ExecOptions) Complete(cmd *cobra.Command, args []string) {
	o.out = cmd.OutOrStdout()
	o.Targets = utils.SplitTargets(args[0])
	o.Command = strings.Join(args[1:], " ")
}

func (o *ExecOptions) Validate() error {
	if len(o.Targets) == 0 {
		return fmt.Errorf("必须指定目标主机或分组")
	}
	if strings.TrimSpace(o.Command) == "" {
		return fmt.Errorf("必须指定要执行的命令")
	}
	for _, kv := range o.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("环境变量格式错误: %s", kv)
		}
	}
	return nil
}

func (o *ExecOptions) commandOptions() []models.CommandOption {
	var opts []models.CommandOption
	if len(o.Env) > 0 {
		env := make(map[string]string, len(o.Env))
		for _, kv := range o.Env {
			k, v, _ := strings.Cut(kv, "=")
			env[k] = v
		}
		opts = append(opts, models.WithEnv(env))
	}
	if o.CmdTimeout > 0 {
		opts = append(opts, models.WithCommandTimeout(o.CmdTimeout))
	}
	return opts
}

func (o *ExecOptions) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	_, provider, err := loadFleet()
	if err != nil {
		return err
	}
	var extra []node.Option
	if o.ChunkSize > 0 {
		extra = append(extra, node.WithChunkSize(o.ChunkSize))
	}
	if err := o.ConnOptions.Apply(provider, extra...); err != nil {
		return err
	}

	cluster, err := provider.Cluster(o.Targets...)
	if err != nil {
		return err
	}
	defer cluster.Close()

	if o.Stream {
		return o.runStream(cluster)
	}

	var responses []*models.Response
	if o.Parallel == 1 {
		responses, err = cluster.Run(ctx, o.Command, o.commandOptions()...)
	} else {
		responses, err = cluster.RunParallel(ctx, o.Command, o.Parallel, o.commandOptions()...)
	}
	failed := printResponses(o.out, responses)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d 台主机执行失败", failed)
	}
	return nil
}

// runStream 每台主机后台流式执行，结果按完成顺序输出
func (o *ExecOptions) runStream(cluster *node.Cluster) error {
	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	opts := o.commandOptions()
	for _, m := range cluster.Machines() {
		wg.Go(func() {
			res := <-m.RunAsync(o.Command, opts...)
			mu.Lock()
			defer mu.Unlock()
			if res.Err != nil {
				fmt.Fprintf(o.out, "[ERROR] %s\n------------\n%v\n", m.Name(), res.Err)
				errs = append(errs, fmt.Errorf("%s: %w", m.Name(), res.Err))
				return
			}
			if printResponses(o.out, []*models.Response{res.Response}) > 0 {
				errs = append(errs, fmt.Errorf("%s: exited with code %d", m.Name(), res.Response.ExitCode))
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// printResponses 输出每台主机的结果，返回退出码非零的数量
func printResponses(w io.Writer, responses []*models.Response) int {
	failed := 0
	for _, r := range responses {
		if r == nil {
			continue
		}
		if r.Success() {
			fmt.Fprintf(w, "[SUCCESS] %s\n------------\n%s", r.Host(), r.String())
		} else {
			failed++
			fmt.Fprintf(w, "[FAILED] %s (exit %d)\n------------\n%s", r.Host(), r.ExitCode, r.String())
		}
		if len(r.Stderr) > 0 {
			fmt.Fprintf(w, "%s", r.Stderr)
		}
		fmt.Fprintln(w)
	}
	return failed
}

func init() {
	rootCmd.AddCommand(NewCmdExec())
}
