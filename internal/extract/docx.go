package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDocumentXMLPath = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var (
	// wParagraph matches one <w:p ...>...</w:p> element; <w:pPr> and self-closing <w:p/> are skipped.
	wParagraph = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	wText      = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	overrideRe = regexp.MustCompile(`<Override\s[^>]*>`)
	partNameRe = regexp.MustCompile(`PartName="([^"]+)"`)
)

// extractDOCX returns the text of every non-empty paragraph, one per line. The main
// part is located through [Content_Types].xml, defaulting to word/document.xml.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := docxDocumentXMLPath
	if ct, err := readZipFile(zr, contentTypesPath); err == nil {
		if p := mainPartName(string(ct)); p != "" {
			docPath = p
		}
	}
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var lines []string
	for _, para := range wParagraph.FindAllString(string(docXML), -1) {
		var b strings.Builder
		for _, m := range wText.FindAllStringSubmatch(para, -1) {
			b.WriteString(m[1])
		}
		if line := strings.TrimSpace(html.UnescapeString(b.String())); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// mainPartName returns the main document part from [Content_Types].xml, without the leading slash.
func mainPartName(contentTypes string) string {
	for _, override := range overrideRe.FindAllString(contentTypes, -1) {
		if !strings.Contains(override, `ContentType="`+docxMainContentType+`"`) {
			continue
		}
		if m := partNameRe.FindStringSubmatch(override); len(m) > 1 {
			return strings.TrimPrefix(m[1], "/")
		}
	}
	return ""
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
