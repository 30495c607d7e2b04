// Package api 提供翻译任务的 HTTP 接口。
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/config"
	"github.com/nerdneilsfield/go-pdf-translator/internal/logger"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/providers/stats"
)

// 上传表单在文件之外允许的额外字节数
const formOverhead = 1 << 20

// Server HTTP 服务
type Server struct {
	router  chi.Router
	service *pipeline.Service
	stats   *stats.Manager
	log     *zap.Logger
	cfg     *config.Config
}

// NewServer 创建并配置路由。stats 可以为空。
func NewServer(svc *pipeline.Service, st *stats.Manager, log *zap.Logger, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	s := &Server{
		service: svc,
		stats:   st,
		log:     logger.OrNop(log),
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Post("/parse", s.handleParse)
		r.Post("/translate", s.handleTranslate)
		r.Get("/status", s.handleStatus)
		r.Post("/export/{format}", s.handleExport)
		r.Get("/stats", s.handleStats)

		r.Get("/jobs/{jobID}/reconstruct", s.handleReconstruct)
		r.Delete("/jobs/{jobID}", s.handleDeleteJob)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe 启动服务，ctx 结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
