package flow

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func Load(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Flow, error) {
	var f Flow
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse flow file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate 除字段校验外还检查前置关系：
// 名称唯一、前置任务存在、没有环，被依赖的任务不能带 only_if
// (被跳过的任务不会放行依赖它的任务)
func (f *Flow) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("flow: %w", err)
	}

	byName := make(map[string]Step, len(f.Steps))
	for _, s := range f.Steps {
		if _, dup := byName[s.Name]; dup {
			return fmt.Errorf("task %q: duplicate name", s.Name)
		}
		byName[s.Name] = s
	}

	var errs []error
	for _, s := range f.Steps {
		if s.After == "" {
			continue
		}
		pred, ok := byName[s.After]
		if !ok {
			errs = append(errs, fmt.Errorf("task %q: unknown predecessor %q", s.Name, s.After))
			continue
		}
		if pred.OnlyIf != "" {
			errs = append(errs, fmt.Errorf("task %q: predecessor %q has only_if and may never release it", s.Name, s.After))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	// 每个任务只有一个前置，沿 after 走超过任务数步即说明有环
	for _, s := range f.Steps {
		cur := s
		for steps := 0; cur.After != ""; steps++ {
			if steps >= len(f.Steps) {
				return fmt.Errorf("task %q: dependency cycle", s.Name)
			}
			cur = byName[cur.After]
		}
	}
	return nil
}
