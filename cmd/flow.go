package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/pkg/flow"
	"github.com/wentf9/flowlight/pkg/task"
)

func NewCmdFlow() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "按依赖顺序运行任务流",
		Long: `任务流文件中每个任务在一组主机上执行一条命令。
after 指定唯一的前置任务,only_if 是在本机执行的判断命令,退出码为0时才执行任务。`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(NewCmdFlowRun())
	cmd.AddCommand(NewCmdFlowCheck())
	return cmd
}

type FlowRunOptions struct {
	ConnOptions
	Path    string
	Verbose bool
}

func NewCmdFlowRun() *cobra.Command {
	o := &FlowRunOptions{}
	cmd := &cobra.Command{
		Use:   "run <flow.yaml>",
		Short: "运行任务流",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Path = args[0]
			return o.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	o.ConnOptions.AddFlags(cmd)
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "V", false, "输出每台主机的执行结果")
	return cmd
}

func (o *FlowRunOptions) Run(ctx context.Context, out io.Writer) error {
	f, err := flow.Load(o.Path)
	if err != nil {
		return err
	}
	_, provider, err := loadFleet()
	if err != nil {
		return err
	}
	if err := o.ConnOptions.Apply(provider); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := flow.NewRunner(provider, flow.WithReportHook(func(rep flow.Report) {
		fmt.Fprintf(out, "[%s] %s\n", rep.State, rep.Task)
	}))
	reports, err := runner.Run(ctx, f)
	if o.Verbose {
		for _, rep := range reports {
			printResponses(out, rep.Responses)
		}
	}
	printSummary(out, reports)
	return err
}

func printSummary(out io.Writer, reports []flow.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATE\tDURATION\tRUN ID\tERROR")
	for _, rep := range reports {
		errMsg := ""
		if rep.Err != nil && rep.State == task.Failed {
			errMsg = rep.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rep.Task, rep.State, rep.Duration.Round(time.Millisecond), rep.RunID, errMsg)
	}
	w.Flush()
}

func NewCmdFlowCheck() *cobra.Command {
	return &cobra.Command{
		Use:   "check <flow.yaml>",
		Short: "校验任务流文件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := flow.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d 个任务\n", args[0], len(f.Steps))
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(NewCmdFlow())
}
