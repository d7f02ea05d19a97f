package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wentf9/flowlight/pkg/config"
	"github.com/wentf9/flowlight/pkg/models"
)

func NewCmdInventory() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "inventory",
		Aliases: []string{"host", "hosts", "inv"},
		Short:   "管理 fleet 文件中的主机和分组",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	cmd.AddCommand(NewCmdInventoryList())
	cmd.AddCommand(NewCmdInventoryAdd())
	cmd.AddCommand(NewCmdInventoryDelete())
	cmd.AddCommand(NewCmdInventoryGroup())
	return cmd
}

func NewCmdInventoryList() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "列出所有主机和分组",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, provider, err := loadFleet()
			if err != nil {
				return err
			}
			listInventory(cmd.OutOrStdout(), provider)
			return nil
		},
	}
}

func listInventory(out io.Writer, p *config.Provider) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADDRESS\tPORT\tUSER\tALIAS")
	defaults := p.Fleet().Defaults
	for _, id := range p.HostIDs() {
		h, _ := p.Host(id)
		user := h.User
		if user == "" {
			user = defaults.User
		}
		port := h.Port
		if port == 0 {
			port = defaults.Port
		}
		portStr := "-"
		if port != 0 {
			portStr = fmt.Sprint(port)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", id, h.Address, portStr, user, strings.Join(h.Alias, ","))
	}
	w.Flush()

	groups := p.GroupNames()
	if len(groups) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tMEMBERS")
	for _, name := range groups {
		fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(p.Fleet().Groups[name], ","))
	}
	w.Flush()
}

func NewCmdInventoryAdd() *cobra.Command {
	var h models.Host
	cmd := &cobra.Command{
		Use:   "add <id> <address>",
		Short: "添加或替换一台主机",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, provider, err := loadFleet()
			if err != nil {
				return err
			}
			h.Address = args[1]
			provider.AddHost(args[0], h)
			if err := store.Save(provider.Fleet()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "已保存主机 %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&h.Alias, "alias", "a", nil, "别名,多个用逗号分隔")
	cmd.Flags().IntVarP(&h.Port, "port", "p", 0, "SSH端口")
	cmd.Flags().StringVarP(&h.User, "user", "u", "", "SSH用户名")
	cmd.Flags().StringVarP(&h.Password, "password", "P", "", "SSH密码")
	cmd.Flags().StringVarP(&h.KeyFile, "key", "i", "", "SSH私钥文件路径")
	cmd.Flags().StringVarP(&h.Passphrase, "key_pass", "w", "", "SSH私钥密码")
	cmd.MarkFlagsMutuallyExclusive("password", "key")
	return cmd
}

func NewCmdInventoryDelete() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm", "del"},
		Short:   "删除主机,同时从所有分组中移除",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, provider, err := loadFleet()
			if err != nil {
				return err
			}
			fleet := provider.Fleet()
			for _, id := range args {
				if _, ok := provider.Host(id); !ok {
					return fmt.Errorf("主机 %s 不存在", id)
				}
				provider.RemoveHost(id)
				for name, members := range fleet.Groups {
					kept := members[:0]
					for _, m := range members {
						if m != id {
							kept = append(kept, m)
						}
					}
					if len(kept) == 0 {
						delete(fleet.Groups, name)
					} else {
						fleet.Groups[name] = kept
					}
				}
			}
			return store.Save(fleet)
		},
	}
}

func NewCmdInventoryGroup() *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "group <name> [member...]",
		Short: "设置分组成员,--rm 删除分组",
		Long: `设置分组成员,成员可以是主机ID、别名或未登记的地址。
flowlight inventory group web web1 web2 10.0.0.13
flowlight inventory group web --rm`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, provider, err := loadFleet()
			if err != nil {
				return err
			}
			fleet := provider.Fleet()
			name := args[0]
			switch {
			case remove:
				delete(fleet.Groups, name)
			case len(args) == 1:
				return fmt.Errorf("分组 %s 至少需要一个成员", name)
			default:
				fleet.Groups[name] = args[1:]
			}
			return store.Save(fleet)
		},
	}
	cmd.Flags().BoolVar(&remove, "rm", false, "删除分组")
	return cmd
}

func init() {
	rootCmd.AddCommand(NewCmdInventory())
}
