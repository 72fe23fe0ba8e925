package extractor

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"contextiq/internal/domain"
)

// columnGap separates cells in pdftotext -layout output.
var columnGap = regexp.MustCompile(`\s{2,}`)

// extractTables runs a layout-preserving pass per page and exports every
// detected table as CSV. It keeps going after a page fails and returns the
// tables found so far along with the joined failures.
func (e *Extractor) extractTables(ctx context.Context, path, name string, pages int) ([]domain.TableRef, error) {
	if e.sink == nil {
		return nil, nil
	}
	var refs []domain.TableRef
	var errs []error
	for n := 1; n <= pages; n++ {
		page := strconv.Itoa(n)
		out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", "-f", page, "-l", page, path, "-")
		if err != nil {
			errs = append(errs, fmt.Errorf("page %d: %w", n, err))
			continue
		}
		for k, table := range DetectTables(stripCR(string(out))) {
			data, err := tableCSV(table)
			if err != nil {
				errs = append(errs, fmt.Errorf("page %d table %d: %w", n, k, err))
				continue
			}
			key := fmt.Sprintf("%s_page%d_table%d.csv", name, n, k)
			loc, err := e.sink.Save(ctx, key, data)
			if err != nil {
				errs = append(errs, fmt.Errorf("page %d table %d: %w", n, k, err))
				continue
			}
			refs = append(refs, domain.TableRef{PageNumber: n, CSVPath: loc})
		}
	}
	if len(errs) > 0 {
		return refs, fmt.Errorf("%w: %w", domain.ErrTableExtraction, errors.Join(errs...))
	}
	return refs, nil
}

// DetectTables finds runs of at least two consecutive lines that split into
// the same number (two or more) of whitespace-separated columns.
func DetectTables(layout string) [][][]string {
	var tables [][][]string
	var current [][]string
	flush := func() {
		if len(current) >= 2 {
			tables = append(tables, current)
		}
		current = nil
	}
	for _, line := range strings.Split(layout, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		cells := columnGap.Split(trimmed, -1)
		if len(cells) < 2 {
			flush()
			continue
		}
		if len(current) > 0 && len(current[0]) != len(cells) {
			flush()
		}
		current = append(current, cells)
	}
	flush()
	return tables
}

// tableCSV writes rows as CSV. Commas inside cells become spaces so the file
// stays readable by naive splitters.
func tableCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		clean := make([]string, len(row))
		for i, cell := range row {
			clean[i] = strings.ReplaceAll(cell, ",", " ")
		}
		if err := w.Write(clean); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
