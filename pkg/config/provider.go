package config

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/node"
)

// Provider 根据 Fleet 构建 Machine 和 Cluster
type Provider struct {
	fleet     *Fleet
	finder    *finder
	overrides []node.Option
}

func NewProvider(f *Fleet) *Provider {
	f.normalize()
	p := &Provider{fleet: f, finder: newFinder()}
	f.Hosts.IterCb(func(id string, h models.Host) bool {
		p.finder.add(id, h, f.Defaults)
		return true
	})
	return p
}

func (p *Provider) Fleet() *Fleet { return p.fleet }

// SetOverrides 设置命令行传入的连接选项，优先级高于 fleet 文件
func (p *Provider) SetOverrides(opts ...node.Option) {
	p.overrides = opts
}

// Find 按 ID、别名、地址或 user@地址:端口 查找主机 ID
func (p *Provider) Find(input string) (string, bool) {
	return p.finder.find(input)
}

func (p *Provider) Host(id string) (models.Host, bool) {
	return p.fleet.Hosts.Get(id)
}

func (p *Provider) AddHost(id string, h models.Host) {
	p.fleet.Hosts.Set(id, h)
	p.finder.add(id, h, p.fleet.Defaults)
}

func (p *Provider) RemoveHost(id string) {
	p.fleet.Hosts.Remove(id)
	p.finder.remove(id)
}

// HostIDs 返回排序后的主机 ID
func (p *Provider) HostIDs() []string {
	ids := p.fleet.Hosts.Keys()
	slices.Sort(ids)
	return ids
}

// GroupNames 返回排序后的分组名
func (p *Provider) GroupNames() []string {
	return slices.Sorted(maps.Keys(p.fleet.Groups))
}

// Options 合并 defaults 与主机自身的配置，主机未登记时只用 defaults
func (p *Provider) Options(input string) []node.Option {
	opts := profileOptions(p.fleet.Defaults)
	if id, ok := p.Find(input); ok {
		h, _ := p.Host(id)
		opts = append(opts, profileOptions(h.Profile)...)
	}
	return opts
}

// Machine 构建带连接的 Machine，连接在第一次执行时建立
// 已登记的主机使用登记的地址，名称为主机 ID；否则 input 本身就是地址
func (p *Provider) Machine(input string, extra ...node.Option) (*node.Machine, error) {
	address, name := input, input
	if id, ok := p.Find(input); ok {
		h, _ := p.Host(id)
		address, name = h.Address, id
	}
	m, err := node.NewMachine(address, node.WithName(name))
	if err != nil {
		return nil, err
	}
	opts := append(p.Options(input), p.overrides...)
	if err := m.SetConnection(append(opts, extra...)...); err != nil {
		return m, err
	}
	return m, nil
}

// Cluster 把输入解析为一个 Cluster
// 每个输入可以是分组名、主机标识符或者未登记的地址，分组会被展开为子 Group
func (p *Provider) Cluster(inputs ...string) (*node.Cluster, error) {
	c := node.NewCluster()
	for _, in := range inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		if members, ok := p.fleet.Groups[in]; ok {
			g := node.NewGroup(in)
			for _, member := range members {
				m, err := p.Machine(member)
				if err != nil {
					return nil, fmt.Errorf("group %s: %w", in, err)
				}
				g.Add(m)
			}
			c.Add(g)
			continue
		}
		m, err := p.Machine(in)
		if err != nil {
			return nil, err
		}
		c.Add(m)
	}
	if c.Len() == 0 {
		return nil, fmt.Errorf("no hosts given")
	}
	return c, nil
}

// profileOptions 只转换非零字段，后面的选项覆盖前面的
func profileOptions(pf models.Profile) []node.Option {
	var opts []node.Option
	if pf.User != "" {
		opts = append(opts, node.WithUsername(pf.User))
	}
	if pf.Password != "" {
		opts = append(opts, node.WithPassword(pf.Password))
	}
	if pf.KeyFile != "" {
		opts = append(opts, node.WithKeyFile(pf.KeyFile))
	}
	if pf.Passphrase != "" {
		opts = append(opts, node.WithPassphrase(pf.Passphrase))
	}
	if pf.Port != 0 {
		opts = append(opts, node.WithPort(pf.Port))
	}
	if pf.Timeout > 0 {
		opts = append(opts, node.WithTimeout(pf.Timeout))
	}
	if pf.AutoAddHostKey != nil {
		opts = append(opts, node.WithAutoAddHostPolicy(*pf.AutoAddHostKey))
	}
	if pf.KnownHostsFile != "" {
		opts = append(opts, node.WithKnownHostsFile(pf.KnownHostsFile))
	}
	if pf.KeepAlive > 0 {
		opts = append(opts, node.WithKeepAlive(pf.KeepAlive))
	}
	if pf.LocalShortcut != nil {
		opts = append(opts, node.WithLocalShortcut(*pf.LocalShortcut))
	}
	if pf.ChunkSize > 0 {
		opts = append(opts, node.WithChunkSize(pf.ChunkSize))
	}
	return opts
}
