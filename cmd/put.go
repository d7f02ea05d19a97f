package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/cmd/utils"
	"github.com/wentf9/flowlight/pkg/runner"
	"github.com/wentf9/flowlight/pkg/sftp"
)

type PutOptions struct {
	ConnOptions
	Targets    []string
	LocalPath  string
	RemotePath string
	TaskCount  uint
	Threads    int
	NoProgress bool
}

func NewCmdPut() *cobra.Command {
	o := &PutOptions{}
	cmd := &cobra.Command{
		Use:   "put <targets> <local_path> <remote_path>",
		Short: "通过 sftp 把文件或目录上传到一组主机",
		Long: `通过 sftp 把文件或目录上传到一组主机,目录会递归上传。
远程路径不要使用~符号,相对路径默认就是家目录。
用法示例:
flowlight put web ./dist /srv/app
flowlight put web,db1 app.tar.gz /tmp/app.tar.gz --task 4`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Targets = utils.SplitTargets(args[0])
			o.LocalPath, o.RemotePath = args[1], args[2]
			if len(o.Targets) == 0 {
				return fmt.Errorf("必须指定目标主机或分组")
			}
			return o.Run(cmd.Context())
		},
	}
	o.ConnOptions.AddFlags(cmd)
	cmd.Flags().UintVar(&o.TaskCount, "task", runner.DefaultConcurrency, "同时上传的主机数")
	cmd.Flags().IntVar(&o.Threads, "thread", 0, "单个文件同时上传的线程数")
	cmd.Flags().BoolVar(&o.NoProgress, "no-progress", false, "不显示进度条")
	return cmd
}

func (o *PutOptions) Run(ctx context.Context) error {
	total, err := localSize(o.LocalPath)
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
	cluster, err := provider.Cluster(o.Targets...)
	if err != nil {
		return err
	}
	defer cluster.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	machines := cluster.Machines()
	var progress sftp.ProgressFunc
	if !o.NoProgress {
		bar := progressbar.DefaultBytes(total*int64(len(machines)), fmt.Sprintf("上传 %s", filepath.Base(o.LocalPath)))
		defer bar.Finish()
		progress = func(n int) { _ = bar.Add(n) }
	}

	p := runner.NewPool(o.TaskCount)
	for _, m := range machines {
		p.Go(func() error {
			if err := m.Upload(ctx, o.LocalPath, o.RemotePath, progress, sftp.WithThreadsPerFile(o.Threads)); err != nil {
				return fmt.Errorf("%s: %w", m.Name(), err)
			}
			return nil
		})
	}
	return p.Wait()
}

// localSize 计算本地文件或目录的总字节数
func localSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	return total, err
}

func init() {
	rootCmd.AddCommand(NewCmdPut())
}
