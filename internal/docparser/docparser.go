// Package docparser extracts plain text from the document formats the
// pipeline accepts as input: .txt, .pdf, and .docx (spec.md §4.7).
package docparser

import (
	"path/filepath"
	"strings"

	"meetingpipeline/internal/apperrors"
)

// Parse dispatches on file extension and returns the extracted, normalized
// text. Unknown extensions fail with UNSUPPORTED_FORMAT rather than
// guessing a format from content sniffing.
func Parse(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	var raw string
	var err error

	switch ext {
	case ".txt", ".md":
		raw = string(data)
	case ".pdf":
		raw, err = extractPDF(data)
	case ".docx":
		raw, err = extractDocx(data)
	default:
		return "", apperrors.Newf(apperrors.UnsupportedFormat, "unsupported document extension %q", ext)
	}
	if err != nil {
		return "", err
	}
	return normalize(raw), nil
}

// normalize collapses every run of two or more consecutive blank lines
// down to a single blank line, and trims trailing whitespace per line, matching
// app/core/utils.py's text-cleaning intent without altering paragraph
// boundaries the semantic chunker (C11) relies on.
func normalize(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var out []string
	blankRun := 0
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
