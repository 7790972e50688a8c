package docparser

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"meetingpipeline/internal/apperrors"
)

// extractPDF dumps each page's raw content stream via pdfcpu and scans the
// PDF content-stream operators for text-showing operations (Tj, TJ, ').
// pdfcpu is a page-manipulation library, not a text-extraction one (the
// teacher only calls it for RemoveHeaderFooterCrop), so there is no
// ready-made "give me the text" call to reuse — this follows the same
// inFile/outDir/pages/conf calling convention pdfutil.go's CropFile uses,
// then parses the dumped streams itself.
func extractPDF(data []byte) (string, error) {
	inFile, err := os.CreateTemp("", "docparser-*.pdf")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "create temp pdf file")
	}
	defer os.Remove(inFile.Name())
	if _, err := inFile.Write(data); err != nil {
		inFile.Close()
		return "", apperrors.Wrap(err, apperrors.Internal, "write temp pdf file")
	}
	if err := inFile.Close(); err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "close temp pdf file")
	}

	outDir, err := os.MkdirTemp("", "docparser-content-*")
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "create temp content dir")
	}
	defer os.RemoveAll(outDir)

	conf := api.LoadConfiguration()
	if err := api.ExtractContentFile(inFile.Name(), outDir, nil, conf); err != nil {
		return "", apperrors.Wrap(err, apperrors.BadInput, "pdf content extraction failed")
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.Internal, "read content extraction dir")
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out bytes.Buffer
	for _, name := range names {
		raw, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			continue
		}
		out.WriteString(scanContentStreamText(raw))
		out.WriteString("\n\n")
	}
	if out.Len() == 0 {
		return "", apperrors.New(apperrors.BadInput, "pdf contains no extractable text")
	}
	return out.String(), nil
}

// scanContentStreamText walks a PDF page content stream and collects the
// operand strings of Tj/'/TJ text-showing operators, skipping everything
// outside BT...ET text blocks.
func scanContentStreamText(stream []byte) string {
	var out bytes.Buffer
	inText := false
	i := 0
	for i < len(stream) {
		switch {
		case matchKeyword(stream, i, "BT"):
			inText = true
			i += 2
		case matchKeyword(stream, i, "ET"):
			inText = false
			i += 2
		case inText && stream[i] == '(':
			lit, next := readPDFStringLiteral(stream, i)
			out.WriteString(lit)
			i = next
		case inText && stream[i] == '[':
			// TJ array: a run of string literals and kerning numbers.
			end := matchingBracket(stream, i)
			j := i + 1
			for j < end {
				if stream[j] == '(' {
					lit, next := readPDFStringLiteral(stream, j)
					out.WriteString(lit)
					j = next
					continue
				}
				j++
			}
			i = end + 1
		default:
			i++
		}
	}
	return out.String()
}

func matchKeyword(stream []byte, i int, kw string) bool {
	if i+len(kw) > len(stream) {
		return false
	}
	if string(stream[i:i+len(kw)]) != kw {
		return false
	}
	// require a token boundary before/after so "BT" inside another token
	// (unlikely in practice) isn't mistaken for the operator.
	if i > 0 && isTokenChar(stream[i-1]) {
		return false
	}
	if i+len(kw) < len(stream) && isTokenChar(stream[i+len(kw)]) {
		return false
	}
	return true
}

func isTokenChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

// readPDFStringLiteral reads a parenthesized PDF string literal starting
// at stream[start] == '(', handling backslash escapes and nested
// balanced parentheses, returning the decoded text and the index just
// past the closing ')'.
func readPDFStringLiteral(stream []byte, start int) (string, int) {
	var out bytes.Buffer
	depth := 0
	i := start
	for i < len(stream) {
		c := stream[i]
		switch {
		case c == '\\' && i+1 < len(stream):
			out.WriteByte(decodeEscape(stream[i+1]))
			i += 2
		case c == '(':
			depth++
			if depth > 1 {
				out.WriteByte(c)
			}
			i++
		case c == ')':
			depth--
			i++
			if depth <= 0 {
				return out.String(), i
			}
			out.WriteByte(c)
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), i
}

func decodeEscape(b byte) byte {
	switch b {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	default:
		return b
	}
}

func matchingBracket(stream []byte, open int) int {
	depth := 0
	for i := open; i < len(stream); i++ {
		switch stream[i] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(stream) - 1
}
