package config

import (
	"github.com/wentf9/flowlight/pkg/models"
	"github.com/wentf9/flowlight/pkg/utils/concurrent"
)

// Fleet 对应 fleet.yaml 的顶层结构
//
//	defaults:
//	  user: deploy
//	  key_file: ~/.ssh/id_ed25519
//	  timeout: 10s
//	hosts:
//	  web1:
//	    address: 10.0.0.11
//	    alias: [w1]
//	  db1:
//	    address: db.internal
//	    port: 2222
//	groups:
//	  web: [web1, 10.0.0.12]
type Fleet struct {
	Defaults models.Profile                       `yaml:"defaults"`
	Hosts    *concurrent.Map[string, models.Host] `yaml:"hosts" validate:"-"`
	Groups   map[string][]string                  `yaml:"groups,omitempty" validate:"dive,keys,required,endkeys,min=1,dive,required"`
}

func NewFleet() *Fleet {
	return &Fleet{
		Hosts:  concurrent.NewMap[string, models.Host](concurrent.HashString),
		Groups: make(map[string][]string),
	}
}

// normalize 补齐 yaml 中缺失的部分
func (f *Fleet) normalize() {
	if f.Hosts == nil {
		f.Hosts = concurrent.NewMap[string, models.Host](concurrent.HashString)
	}
	if f.Groups == nil {
		f.Groups = make(map[string][]string)
	}
}
