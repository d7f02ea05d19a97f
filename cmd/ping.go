package cmd

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	ping "github.com/prometheus-community/pro-bing"
	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/cmd/utils"
	"github.com/wentf9/flowlight/pkg/runner"
)

type PingOptions struct {
	Targets    []string
	Port       int
	Count      int
	Timeout    time.Duration
	TaskCount  uint
	Privileged bool
}

func NewCmdPing() *cobra.Command {
	o := &PingOptions{}
	cmd := &cobra.Command{
		Use:   "ping <targets> [port]",
		Short: "通过ICMP Ping一组主机或检查它们的TCP端口是否开放",
		Long: `该命令有两种工作模式:
1. ICMP Ping (1个参数):
   对目标中的每台主机发送ICMP请求测试网络连通性。
   示例: flowlight ping web,db1

2. TCP端口检查 (2个参数):
   对每台主机尝试建立TCP连接来判断端口是否开放。
   示例: flowlight ping web 22`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.Targets = utils.SplitTargets(args[0])
			if len(args) == 2 {
				port, err := strconv.Atoi(args[1])
				if err != nil || port < 1 || port > 65535 {
					return fmt.Errorf("无效的端口: %s", args[1])
				}
				o.Port = port
			}
			return o.Run(cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVarP(&o.Count, "count", "c", 4, "每台主机发送的ICMP包数量")
	cmd.Flags().DurationVar(&o.Timeout, "timeout", 5*time.Second, "超时时间")
	cmd.Flags().UintVar(&o.TaskCount, "task", runner.DefaultConcurrency, "同时检测的主机数")
	// 在 Linux/macOS 上 raw socket 需要root权限
	cmd.Flags().BoolVar(&o.Privileged, "privileged", true, "使用raw socket发送ICMP")
	return cmd
}

func (o *PingOptions) Run(out io.Writer) error {
	_, provider, err := loadFleet()
	if err != nil {
		return err
	}
	cluster, err := provider.Cluster(o.Targets...)
	if err != nil {
		return err
	}
	// 只用到地址，不会建立连接
	defer cluster.Close()

	var mu sync.Mutex
	printf := func(format string, a ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, a...)
	}

	p := runner.NewPool(o.TaskCount)
	for _, m := range cluster.Machines() {
		p.Go(func() error {
			if o.Port > 0 {
				printf("%s\n", o.checkPort(m.Host()))
				return nil
			}
			printf("%s\n", o.icmp(m.Host()))
			return nil
		})
	}
	return p.Wait()
}

func (o *PingOptions) checkPort(host string) string {
	address := net.JoinHostPort(host, strconv.Itoa(o.Port))
	conn, err := net.DialTimeout("tcp", address, o.Timeout)
	if err != nil {
		return fmt.Sprintf("主机 %s 的端口 %d 已关闭或被过滤: %v", host, o.Port, err)
	}
	conn.Close()
	return fmt.Sprintf("主机 %s 的端口 %d 是开放的!", host, o.Port)
}

func (o *PingOptions) icmp(host string) string {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return fmt.Sprintf("创建 %s 的pinger失败: %v", host, err)
	}
	pinger.SetPrivileged(o.Privileged)
	pinger.Count = o.Count
	pinger.Interval = time.Second
	pinger.Timeout = o.Timeout
	if err := pinger.Run(); err != nil {
		return fmt.Sprintf("ping %s 失败: %v", host, err)
	}
	stats := pinger.Statistics()
	return fmt.Sprintf("--- %s 的 ping 统计信息 ---\n%d 个包已发送, %d 个包已接收, %v%% 包丢失\n往返行程 最小/平均/最大/标准差 = %v/%v/%v/%v",
		host, stats.PacketsSent, stats.PacketsRecv, stats.PacketLoss,
		stats.MinRtt, stats.AvgRtt, stats.MaxRtt, stats.StdDevRtt)
}

func init() {
	rootCmd.AddCommand(NewCmdPing())
}
