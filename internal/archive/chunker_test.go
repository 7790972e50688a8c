package archive

import (
	"strings"
	"testing"
)

func TestChunkMarkdownSplitsByHeading(t *testing.T) {
	md := "# Intro\n" + strings.Repeat("这是第一段的内容。", 30) + "\n\n# Decisions\n" + strings.Repeat("决议内容在这里。", 30)
	chunks := ChunkMarkdown(md)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks across 2 headings, got %d", len(chunks))
	}
	titles := map[string]bool{}
	for _, c := range chunks {
		titles[c.SectionTitle] = true
	}
	if !titles["Intro"] || !titles["Decisions"] {
		t.Fatalf("expected chunks tagged with both section titles, got %v", titles)
	}
}

func TestChunkMarkdownStaysWithinTargetRange(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("This is one reasonably sized sentence for chunk sizing purposes. ")
	}
	chunks := ChunkMarkdown(sb.String())
	for i, c := range chunks {
		if i == len(chunks)-1 {
			continue // the final chunk may be shorter than the target minimum
		}
		if len(c.Text) < targetMinChars-overlapChars || len(c.Text) > targetMaxChars+overlapChars {
			t.Fatalf("chunk %d length %d outside expected bounds: %q", i, len(c.Text), c.Text)
		}
	}
}

func TestChunkMarkdownAppliesOverlapBetweenAdjacentChunks(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("Sentence number filler text goes here to pad the length out. ")
	}
	chunks := ChunkMarkdown(sb.String())
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	tail := overlapTail(chunks[0].Text)
	if !strings.HasPrefix(chunks[1].Text, tail) {
		t.Fatalf("expected chunk 1 to start with chunk 0's overlap tail %q, got %q", tail, chunks[1].Text[:min(len(chunks[1].Text), 100)])
	}
}

func TestChunkMarkdownHandlesNoHeadings(t *testing.T) {
	chunks := ChunkMarkdown("Just a short paragraph with no headings at all.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "" {
		t.Fatalf("expected untitled section, got %q", chunks[0].SectionTitle)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
