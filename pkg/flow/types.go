// Package flow 从 yaml 文件读取一组命令任务，按前置关系并发执行。
//
//	name: release
//	tasks:
//	  - name: build
//	    hosts: [127.0.0.1]
//	    cmd: make build
//	  - name: deploy
//	    group: web
//	    cmd: ./deploy.sh
//	    after: build
//	  - name: notify
//	    hosts: [127.0.0.1]
//	    cmd: ./notify.sh
//	    after: deploy
//	    only_if: test -f /tmp/notify-enabled
package flow

import "time"

type Flow struct {
	Name  string `yaml:"name,omitempty"`
	Steps []Step `yaml:"tasks" validate:"required,min=1,dive"`
}

// Step 描述一个任务；group 和 hosts 至少给出一个
type Step struct {
	Name  string   `yaml:"name" validate:"required"`
	Group string   `yaml:"group,omitempty" validate:"required_without=Hosts"`
	Hosts []string `yaml:"hosts,omitempty" validate:"required_without=Group,dive,required"`
	Cmd   string   `yaml:"cmd" validate:"required"`
	// After 前置任务的名称，只能有一个
	After string `yaml:"after,omitempty"`
	// OnlyIf 在本机执行的判断命令，退出码为 0 时才执行任务
	OnlyIf   string            `yaml:"only_if,omitempty"`
	Env      map[string]string `yaml:"env,omitempty"`
	Timeout  time.Duration     `yaml:"timeout,omitempty" validate:"min=0"`
	Parallel uint              `yaml:"parallel,omitempty"`
}

// targets 返回 Cluster 的输入
func (s Step) targets() []string {
	var in []string
	if s.Group != "" {
		in = append(in, s.Group)
	}
	return append(in, s.Hosts...)
}
