package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/stats"
)

var (
	// stats 命令的标志
	statsJSON  bool
	resetStats bool
)

// NewStatsCommand 创建 stats 命令
func NewStatsCommand() *cobra.Command {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "查看翻译提供商的调用统计",
		Long: `查看各提供商与模型的请求数、成功率、token 用量和平均延迟。
统计保存在配置项 stats_path 指定的文件中。

示例:
  pdftrans stats
  pdftrans stats --json
  pdftrans stats --reset`,
		Args: cobra.NoArgs,
		RunE: runStatsCommand,
	}

	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "以 JSON 格式输出")
	statsCmd.Flags().BoolVar(&resetStats, "reset", false, "清空全部统计")

	return statsCmd
}

func runStatsCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := commandLogger(cfg)
	defer func() {
		_ = log.Sync()
	}()

	out := cmd.OutOrStdout()
	if cfg.StatsPath == "" {
		fmt.Fprintln(out, "Statistics are disabled (stats_path is empty).")
		return nil
	}

	if resetStats {
		if err := os.Remove(cfg.StatsPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to reset stats: %w", err)
		}
		color.New(color.FgRed, color.Bold).Fprintln(out, "Statistics reset.")
		return nil
	}

	manager := stats.NewManager(cfg.StatsPath, log)
	if err := manager.Load(); err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(manager.All())
	}

	color.New(color.FgCyan, color.Bold).Fprintf(out, "Provider statistics (%s)\n", cfg.StatsPath)
	manager.RenderTable(out)
	return nil
}
