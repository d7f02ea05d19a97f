package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验 defaults、每台主机以及分组
func (f *Fleet) Validate() error {
	var errs []error
	if err := validate.Struct(f); err != nil {
		errs = append(errs, fmt.Errorf("fleet: %w", err))
	}

	ids := f.Hosts.Keys()
	slices.Sort(ids)
	for _, id := range ids {
		h, _ := f.Hosts.Get(id)
		if err := validate.Struct(h); err != nil {
			errs = append(errs, fmt.Errorf("host %q: %w", id, err))
		}
	}

	// 分组名不能与主机名冲突，否则 Cluster 解析会有歧义
	for name := range f.Groups {
		if _, ok := f.Hosts.Get(name); ok {
			errs = append(errs, fmt.Errorf("group %q: name already used by a host", name))
		}
	}
	return errors.Join(errs...)
}
