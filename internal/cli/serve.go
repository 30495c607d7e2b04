package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/api"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
)

// 过期任务的清理间隔
const cleanupInterval = time.Minute

var listenAddr string

// NewServeCommand 创建 serve 命令
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 翻译服务",
		Long: `启动 HTTP 服务，提供上传、解析、流式翻译 (SSE)、状态查询与导出接口。

接口:
  POST   /api/upload
  POST   /api/parse
  POST   /api/translate
  GET    /api/status?jobId=...
  POST   /api/export/{format}
  GET    /api/stats
  GET    /api/jobs/{jobID}/reconstruct
  DELETE /api/jobs/{jobID}`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&listenAddr, "addr", "", "监听地址，默认使用配置中的 server.listen_addr")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.ListenAddr = listenAddr
	}

	log := commandLogger(cfg)
	defer func() {
		_ = log.Sync()
	}()

	comps, err := pipeline.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := comps.Stats.Save(); err != nil {
			log.Warn("failed to save provider stats", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go comps.Service.RunCleanup(ctx, cleanupInterval)

	log.Info("starting server",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("provider", comps.Provider.Name()),
		zap.Int("max_file_size_mb", cfg.Server.MaxFileSizeMB))

	return api.NewServer(comps.Service, comps.Stats, log, cfg).ListenAndServe(ctx)
}
