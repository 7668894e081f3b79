package resumes

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gen2brain/go-fitz"
)

// MaxUploadBytes caps résumé uploads.
const MaxUploadBytes = 5 << 20

// minResumeText is the shortest extracted text accepted as a résumé.
const minResumeText = 50

// ErrUnsupportedFormat indicates an upload that is neither PDF nor text.
type ErrUnsupportedFormat struct {
	Filename    string
	ContentType string
}

func (e *ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported resume format: %s (%s)", e.Filename, e.ContentType)
}

// ErrEmptyResume indicates an upload with too little readable text, such as
// a scanned PDF without a text layer.
type ErrEmptyResume struct {
	Filename string
	Chars    int
}

func (e *ErrEmptyResume) Error() string {
	return fmt.Sprintf("resume %s has too little readable text (%d chars)", e.Filename, e.Chars)
}

// ExtractText returns the plain text of an uploaded résumé. PDFs are read
// with MuPDF; text and markdown files are taken as-is.
func ExtractText(filename, contentType string, data []byte) (string, error) {
	var text string
	switch {
	case isPDF(filename, contentType, data):
		t, err := pdfText(data)
		if err != nil {
			return "", err
		}
		text = t
	case isText(filename, contentType) && utf8.Valid(data):
		text = string(data)
	default:
		return "", &ErrUnsupportedFormat{Filename: filename, ContentType: contentType}
	}

	text = cleanText(text)
	if n := utf8.RuneCountInString(text); n < minResumeText {
		return "", &ErrEmptyResume{Filename: filename, Chars: n}
	}
	return text, nil
}

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = doc.Close() }()

	var sb strings.Builder
	for n := 0; n < doc.NumPage(); n++ {
		page, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("page %d: failed to extract text: %w", n+1, err)
		}
		sb.WriteString(page)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func isPDF(filename, contentType string, data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF")) ||
		strings.EqualFold(filepath.Ext(filename), ".pdf") ||
		strings.Contains(contentType, "pdf")
}

func isText(filename, contentType string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".text":
		return true
	}
	return strings.HasPrefix(contentType, "text/")
}

// cleanText trims lines, collapses spaces and keeps at most one blank line
// between paragraphs.
func cleanText(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
