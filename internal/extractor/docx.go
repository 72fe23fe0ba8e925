package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"contextiq/internal/domain"
)

// extractDOCX joins the non-blank paragraphs of word/document.xml with newlines
// and returns the docProps/core.xml title.
func extractDOCX(doc *domain.Document) (string, error) {
	reader, err := zip.OpenReader(doc.Path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	body, err := readZipEntry(&reader.Reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	if body == nil {
		return "", errors.New("word/document.xml missing")
	}
	paragraphs, err := parseParagraphs(body)
	if err != nil {
		return "", fmt.Errorf("parse document.xml: %w", err)
	}
	doc.FullText = stripCR(strings.Join(paragraphs, "\n"))

	core, err := readZipEntry(&reader.Reader, "docProps/core.xml")
	if err != nil || core == nil {
		return "", nil
	}
	var props struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(core, &props); err != nil {
		return "", nil
	}
	return props.Title, nil
}

func readZipEntry(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// parseParagraphs streams the WordprocessingML body so paragraphs nested in
// tables and text boxes are kept in document order.
func parseParagraphs(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var paragraphs []string
	var current strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteString("\t")
			case "br":
				current.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := current.String(); strings.TrimSpace(text) != "" {
					paragraphs = append(paragraphs, text)
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
