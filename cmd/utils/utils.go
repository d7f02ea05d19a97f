package utils

import (
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"
)

// SplitTargets 拆分逗号分隔的目标列表，忽略空白项
func SplitTargets(input string) []string {
	var targets []string
	for part := range strings.SplitSeq(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			targets = append(targets, part)
		}
	}
	return targets
}

// ReadPasswordFromTerminal 从终端安全地读取密码
func ReadPasswordFromTerminal(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println() // ReadPassword 不会打印换行符
	if err != nil {
		return "", err
	}
	return string(password), nil
}

// IsTerminal 标准输入是否是终端
func IsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}
