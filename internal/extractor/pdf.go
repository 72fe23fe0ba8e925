package extractor

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"contextiq/internal/domain"
)

type pdfInfo struct {
	Pages int
	Title string
}

// extractPDF fills pages, full text and tables, and returns the metadata title.
// Image and table export failures are logged and never fail the document.
func (e *Extractor) extractPDF(ctx context.Context, doc *domain.Document) (string, error) {
	path := doc.Path
	info, err := e.pdfInfo(ctx, path)
	if err != nil {
		return "", err
	}
	out, err := e.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", err
	}
	texts := splitPages(stripCR(string(out)), info.Pages)

	log := e.logger.With(zap.String("path", path))
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	blocks := make([]string, 0, len(texts))
	for i, text := range texts {
		n := i + 1
		page := domain.PageRecord{PageNumber: n, Text: text}
		if strings.TrimSpace(text) == "" {
			page.LowSignal = true
			log.Warn("page has no extractable text; likely a scan without OCR", zap.Int("page", n))
		}
		page.ImagePaths = e.pageImages(ctx, log, path, name, n)
		doc.Pages = append(doc.Pages, page)
		blocks = append(blocks, domain.PageMarker(n)+"\n"+text)
	}
	doc.FullText = strings.Join(blocks, "\n\n")

	tables, err := e.extractTables(ctx, path, name, len(texts))
	if err != nil {
		log.Warn("table extraction incomplete", zap.Int("tables", len(tables)), zap.Error(err))
	}
	doc.Tables = append(doc.Tables, tables...)
	return info.Title, nil
}

func (e *Extractor) pdfInfo(ctx context.Context, path string) (pdfInfo, error) {
	out, err := e.runner.Run(ctx, "pdfinfo", "-enc", "UTF-8", path)
	if err != nil {
		return pdfInfo{}, err
	}
	var info pdfInfo
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Pages":
			info.Pages, _ = strconv.Atoi(value)
		case "Title":
			info.Title = value
		}
	}
	return info, sc.Err()
}

// splitPages cuts pdftotext output on form feeds. The page count from pdfinfo
// wins: missing trailing pages become empty, so every page still gets a marker.
func splitPages(text string, pages int) []string {
	parts := strings.Split(text, "\f")
	if pages <= 0 {
		for len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
			parts = parts[:len(parts)-1]
		}
		return parts
	}
	out := make([]string, pages)
	copy(out, parts)
	return out
}

// pageImages exports the embedded images of page n as PNG files named by content hash.
func (e *Extractor) pageImages(ctx context.Context, log *zap.Logger, path, name string, n int) []string {
	if e.sink == nil {
		return nil
	}
	tmp, err := os.MkdirTemp("", "contextiq-img-")
	if err != nil {
		log.Warn("image export skipped", zap.Int("page", n), zap.Error(err))
		return nil
	}
	defer os.RemoveAll(tmp)

	page := strconv.Itoa(n)
	if _, err := e.runner.Run(ctx, "pdfimages", "-png", "-f", page, "-l", page, path, filepath.Join(tmp, "img")); err != nil {
		log.Warn("image export failed", zap.Int("page", n), zap.Error(err))
		return nil
	}
	files, err := filepath.Glob(filepath.Join(tmp, "img-*.png"))
	if err != nil {
		return nil
	}
	sort.Strings(files)

	var saved []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Warn("image read failed", zap.String("file", f), zap.Error(err))
			continue
		}
		sum := sha1.Sum(data)
		key := fmt.Sprintf("%s_page%d_%s.png", name, n, hex.EncodeToString(sum[:])[:12])
		loc, err := e.sink.Save(ctx, key, data)
		if err != nil {
			log.Warn("image save failed", zap.String("key", key), zap.Error(err))
			continue
		}
		saved = append(saved, loc)
	}
	return saved
}
