package main

import (
	"os"

	"github.com/nerdneilsfield/go-pdf-translator/internal/cli"
)

// Version information
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// 创建根命令
	rootCmd := cli.NewRootCommand(Version, Commit, BuildDate)

	// 执行命令，错误信息由 cobra 输出
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
