package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nerdneilsfield/go-pdf-translator/internal/export"
	"github.com/nerdneilsfield/go-pdf-translator/internal/pipeline"
	"github.com/nerdneilsfield/go-pdf-translator/pkg/translation"
)

type jobRequest struct {
	JobID string `json:"jobId"`
}

type translateRequest struct {
	JobID   string `json:"jobId"`
	ChunkID string `json:"chunkId"`
	Options *struct {
		FormalTone         *bool `json:"formalTone"`
		PreserveFormatting *bool `json:"preserveFormatting"`
	} `json:"options"`
}

type exportRequest struct {
	JobID   string `json:"jobId"`
	Options struct {
		PreserveLayout  *bool  `json:"preserveLayout"`
		PaperSize       string `json:"paperSize"`
		IncludeOriginal *bool  `json:"includeOriginal"`
	} `json:"options"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+formOverhead)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("file too large, maximum size is %dMB", s.cfg.Server.MaxFileSizeMB), http.StatusBadRequest)
			return
		}
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "no file provided", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}

	res, err := s.service.Upload(sanitizeFilename(header.Filename), data, r.FormValue("sourceLanguage"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if !decodeJobRequest(w, r, &req, &req.JobID) {
		return
	}

	res, err := s.service.Parse(r.Context(), req.JobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if !decodeJobRequest(w, r, &req, &req.JobID) {
		return
	}

	treq := pipeline.TranslateRequest{JobID: req.JobID, ChunkID: req.ChunkID}
	if req.Options != nil {
		opts := s.defaultPromptOptions()
		if req.Options.FormalTone != nil {
			opts.FormalTone = *req.Options.FormalTone
		}
		if req.Options.PreserveFormatting != nil {
			opts.PreserveFormatting = *req.Options.PreserveFormatting
		}
		treq.Options = &opts
	}

	stream := newEventStream(w, s.log)
	_, err := s.service.Translate(r.Context(), treq, stream.send)
	if err != nil && !stream.started {
		s.writeError(w, err)
		return
	}
	if err != nil {
		s.log.Warn("translation stream ended with error", zap.String("job_id", req.JobID), zap.Error(err))
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("jobId")
	if jobID == "" {
		jsonError(w, "job ID is required", http.StatusBadRequest)
		return
	}

	report, err := s.service.Status(jobID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req exportRequest
	if !decodeJobRequest(w, r, &req, &req.JobID) {
		return
	}

	opts := export.Options{
		PaperSize:       s.cfg.Export.PaperSize,
		PreserveLayout:  s.cfg.Export.PreserveLayout,
		IncludeOriginal: s.cfg.Export.IncludeOriginal,
	}
	if req.Options.PaperSize != "" {
		opts.PaperSize = strings.ToLower(req.Options.PaperSize)
	}
	if req.Options.PreserveLayout != nil {
		opts.PreserveLayout = *req.Options.PreserveLayout
	}
	if req.Options.IncludeOriginal != nil {
		opts.IncludeOriginal = *req.Options.IncludeOriginal
	}

	var buf bytes.Buffer
	if err := s.service.Export(&buf, req.JobID, format, opts); err != nil {
		s.writeError(w, err)
		return
	}

	report, err := s.service.Status(req.JobID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(report.FileName, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleReconstruct(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.Reconstruct(chi.URLParam(r, "jobID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := s.service.Delete(jobID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobId": jobID, "deleted": true})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "provider stats unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.stats.All()})
}

// decodeJobRequest 解析 JSON 请求体并检查任务 ID
func decodeJobRequest(w http.ResponseWriter, r *http.Request, v any, jobID *string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	if *jobID == "" {
		jsonError(w, "job ID is required", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError 按错误类型选择状态码
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, translation.ErrInputMissing):
		status = http.StatusNotFound
	case errors.Is(err, translation.ErrUnsupportedFormat),
		errors.Is(err, pipeline.ErrNothingToTranslate),
		errors.Is(err, pipeline.ErrNotComplete):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrBusy):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
	}
	jsonError(w, errorMessage(err), status)
}

// errorMessage 翻译错误只返回消息部分
func errorMessage(err error) string {
	var te *translation.TranslationError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed.pdf"
	}
	return name
}
