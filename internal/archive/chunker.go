package archive

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	targetMinChars = 400
	targetMaxChars = 800
	overlapChars   = 80
)

// Chunk is one semantically-bounded slice of an archived minute.
type Chunk struct {
	Text         string
	SectionTitle string
	Index        int
}

var headingRE = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
var sentenceBoundaryRE = regexp.MustCompile(`[^。！？.!?]*[。！？.!?]+|[^。！？.!?]+$`)

// ChunkMarkdown splits markdown by top-level headings, then by paragraph
// within each section, then by sentence, combining greedily into chunks
// of target length 400-800 characters with 80-character overlap between
// adjacent chunks of the same section (spec.md §4.11), generalized from
// loader/internal/pdf_loader.go's word-sliding-window chunker to
// semantic boundaries instead of a fixed word count.
func ChunkMarkdown(markdown string) []Chunk {
	sections := splitSections(markdown)
	var chunks []Chunk
	index := 0
	for _, sec := range sections {
		sentences := sentencesOf(sec.body)
		if len(sentences) == 0 {
			continue
		}
		for _, text := range combineGreedily(sentences) {
			chunks = append(chunks, Chunk{Text: strings.TrimSpace(text), SectionTitle: sec.title, Index: index})
			index++
		}
	}
	return chunks
}

type section struct {
	title string
	body  string
}

// splitSections breaks markdown on top-level headings. Text before the
// first heading belongs to an untitled section.
func splitSections(markdown string) []section {
	locs := headingRE.FindAllStringSubmatchIndex(markdown, -1)
	if len(locs) == 0 {
		return []section{{title: "", body: markdown}}
	}

	var sections []section
	if locs[0][0] > 0 {
		sections = append(sections, section{title: "", body: markdown[:locs[0][0]]})
	}
	for i, loc := range locs {
		title := strings.TrimSpace(markdown[loc[2]:loc[3]])
		bodyStart := loc[1]
		bodyEnd := len(markdown)
		if i+1 < len(locs) {
			bodyEnd = locs[i+1][0]
		}
		sections = append(sections, section{title: title, body: markdown[bodyStart:bodyEnd]})
	}
	return sections
}

// sentencesOf splits a section body into paragraphs, then sentences
// within each paragraph, flattening into one ordered slice — paragraph
// boundaries don't need their own identity once sentences are known.
func sentencesOf(body string) []string {
	paragraphs := regexp.MustCompile(`\n\s*\n`).Split(body, -1)
	var out []string
	for _, p := range paragraphs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		for _, s := range sentenceBoundaryRE.FindAllString(p, -1) {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// combineGreedily packs sentences into chunks targeting 400-800 chars,
// carrying the last overlapChars of a finished chunk into the next one
// so adjacent chunks of the same section share context.
func combineGreedily(sentences []string) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() string {
		text := cur.String()
		cur.Reset()
		return text
	}

	for _, s := range sentences {
		curLen := utf8.RuneCountInString(cur.String())
		if curLen > 0 && curLen+utf8.RuneCountInString(s) > targetMaxChars {
			finished := flush()
			chunks = append(chunks, finished)
			cur.WriteString(overlapTail(finished))
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(s)

		if utf8.RuneCountInString(cur.String()) >= targetMinChars {
			finished := flush()
			chunks = append(chunks, finished)
			cur.WriteString(overlapTail(finished))
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, flush())
	}
	return chunks
}

func overlapTail(text string) string {
	runes := []rune(text)
	if len(runes) <= overlapChars {
		return text
	}
	return string(runes[len(runes)-overlapChars:])
}
