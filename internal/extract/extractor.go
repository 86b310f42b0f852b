// Package extract turns file bytes into indexable text. Office and PDF formats are
// reduced to one line per paragraph, row or page so the line-aligned chunker keeps
// their structure.
package extract

import (
	"errors"
	"strings"
)

// ErrBinary is returned for content that looks like a binary file with no extractor.
var ErrBinary = errors.New("binary content")

// Extractor extracts plain text from file contents.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// ExtractBytes extracts text from content based on ext (with leading dot, any case).
// Unknown extensions are treated as UTF-8 text; content with NUL bytes yields ErrBinary.
func (e *Extractor) ExtractBytes(content []byte, ext string) (string, error) {
	switch strings.ToLower(ext) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractDOCX(content)
	case ".xlsx":
		return extractExcel(content)
	default:
		return extractPlain(content)
	}
}

// IsDocument reports whether ext is handled by a binary document extractor.
func IsDocument(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".xlsx":
		return true
	}
	return false
}
