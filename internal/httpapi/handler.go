package httpapi

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"contextiq/internal/domain"
	"contextiq/internal/logger"
	"contextiq/internal/service"
)

const defaultTopK = 10

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.svc.Models()})
}

// Upload stores the multipart "files" into the upload directory and ingests them.
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		handleError(c, fmt.Errorf("%w: multipart form required", domain.ErrInvalidInput))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		handleError(c, fmt.Errorf("%w: no files uploaded", domain.ErrInvalidInput))
		return
	}
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		handleError(c, err)
		return
	}

	names := make([]string, len(files))
	for i, f := range files {
		name := filepath.Base(f.Filename)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			handleError(c, fmt.Errorf("%w: bad file name %q", domain.ErrInvalidInput, f.Filename))
			return
		}
		names[i] = name
	}

	paths := make([]string, 0, len(files))
	for i, f := range files {
		dst := filepath.Join(h.uploadDir, names[i])
		if err := c.SaveUploadedFile(f, dst); err != nil {
			handleError(c, err)
			return
		}
		paths = append(paths, dst)
	}

	report, err := h.svc.IngestFiles(c.Request.Context(), paths)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":      fmt.Sprintf("Uploaded %d files", len(files)),
		"chunks_added": report.ChunksAdded,
		"files":        report.Files,
	})
}

// Ask accepts form or JSON fields query, model and top_k.
func (h *Handler) Ask(c *gin.Context) {
	var req domain.AskRequest
	if err := c.ShouldBind(&req); err != nil {
		handleError(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		handleError(c, fmt.Errorf("%w: query is required", domain.ErrInvalidInput))
		return
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	answer, err := h.svc.Answer(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "answer": answer})
}

func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	topK := defaultTopK
	if raw := c.Query("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			handleError(c, fmt.Errorf("%w: top_k must be a positive integer", domain.ErrInvalidInput))
			return
		}
		topK = n
	}
	results, err := h.svc.Search(c.Request.Context(), query, topK)
	if err != nil {
		handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

func handleError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if service.IsClientError(err) {
		status = http.StatusBadRequest
	}
	logger.FromContext(c.Request.Context()).Warn("request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Int("status", status),
		zap.Error(err))
	c.JSON(status, gin.H{"error": err.Error()})
}
