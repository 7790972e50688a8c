package mdrender

import (
	"strings"
	"testing"
)

func TestToHTMLRendersHeadingsAndParagraphs(t *testing.T) {
	got := ToHTML("# Meeting Minutes\n\nWe discussed the roadmap.")
	if !strings.Contains(got, "<h1>Meeting Minutes</h1>") {
		t.Fatalf("missing heading: %q", got)
	}
	if !strings.Contains(got, "<p>We discussed the roadmap.</p>") {
		t.Fatalf("missing paragraph: %q", got)
	}
}

func TestToHTMLRendersBulletList(t *testing.T) {
	got := ToHTML("- first item\n- second item")
	if !strings.Contains(got, "<ul>") || !strings.Contains(got, "<li>first item</li>") {
		t.Fatalf("missing bullet list: %q", got)
	}
}

func TestToHTMLRendersNumberedList(t *testing.T) {
	got := ToHTML("1. alpha\n2. beta")
	if !strings.Contains(got, "<ol>") || !strings.Contains(got, "<li>beta</li>") {
		t.Fatalf("missing numbered list: %q", got)
	}
}

func TestToHTMLEscapesAndBoldsInline(t *testing.T) {
	got := ToHTML("plain **bold** <script>")
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Fatalf("missing bold: %q", got)
	}
	if strings.Contains(got, "<script>") {
		t.Fatalf("expected raw html to be escaped: %q", got)
	}
}
