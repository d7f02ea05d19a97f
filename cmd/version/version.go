package version

import (
	"fmt"
	"io"
	"runtime"
)

// 这些变量在编译时会被 ldflags 覆盖
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Fprint 输出详细版本信息
func Fprint(w io.Writer) {
	fmt.Fprintf(w, "Version:    %s\n", Version)
	fmt.Fprintf(w, "Git Commit: %s\n", Commit)
	fmt.Fprintf(w, "Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
