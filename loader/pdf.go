// Package loader turns source files into documents. PDF files are split
// into one unit per page so detected entities and retrieved chunks keep
// their page provenance.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/siherrmann/ragvault/model"
)

// LoadPDF reads a PDF file into a Document with one unit per page.
// Pages that cannot be extracted are skipped, not fatal: a partially
// scanned PDF should still yield its text pages.
func LoadPDF(filePath string) (*model.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return LoadPDFBytes(filepath.Base(filePath), data)
}

// LoadPDFBytes parses PDF content already in memory, for callers that
// receive uploads rather than file paths.
func LoadPDFBytes(name string, data []byte) (*model.Document, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}

	document := &model.Document{
		Name: name,
		Size: int64(len(data)),
	}

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		document.Units = append(document.Units, model.Unit{Text: text, Page: i})
	}

	return document, nil
}

// Load reads a file into a Document, choosing the parser by extension.
// Anything that is not a PDF is treated as plain text.
func Load(filePath string) (*model.Document, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".pdf") {
		return LoadPDF(filePath)
	}
	return model.NewDocumentFromFile(filePath)
}
