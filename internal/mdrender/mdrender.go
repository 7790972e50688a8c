// Package mdrender converts the LLM's markdown minutes into the
// html_content surface (spec.md §6, §9 Open Questions — no Markdown
// library appears anywhere in the example pack, so this is a
// deliberately narrow stdlib renderer covering headings, paragraphs,
// bold/italic, and lists only).
package mdrender

import (
	"html"
	"regexp"
	"strings"
)

var (
	headingRE = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	boldRE    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRE  = regexp.MustCompile(`\*([^*]+)\*`)
	bulletRE  = regexp.MustCompile(`^[-*]\s+(.*)$`)
	numberRE  = regexp.MustCompile(`^\d+\.\s+(.*)$`)
)

// ToHTML renders markdown to HTML line-by-line: headings become
// h1-h6, bullet/numbered runs become ul/ol, blank-line-separated text
// becomes paragraphs, and inline bold/italic spans are substituted.
func ToHTML(markdown string) string {
	lines := strings.Split(markdown, "\n")
	var sb strings.Builder

	var paragraph []string
	var listItems []string
	var listOrdered bool
	inList := false

	flushParagraph := func() {
		if len(paragraph) == 0 {
			return
		}
		sb.WriteString("<p>")
		sb.WriteString(inlineFormat(strings.Join(paragraph, " ")))
		sb.WriteString("</p>\n")
		paragraph = nil
	}
	flushList := func() {
		if !inList {
			return
		}
		tag := "ul"
		if listOrdered {
			tag = "ol"
		}
		sb.WriteString("<" + tag + ">\n")
		for _, item := range listItems {
			sb.WriteString("<li>")
			sb.WriteString(inlineFormat(item))
			sb.WriteString("</li>\n")
		}
		sb.WriteString("</" + tag + ">\n")
		listItems = nil
		inList = false
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushParagraph()
			flushList()
			continue
		}

		if m := headingRE.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			flushList()
			level := len(m[1])
			sb.WriteString("<h" + itoa(level) + ">")
			sb.WriteString(inlineFormat(m[2]))
			sb.WriteString("</h" + itoa(level) + ">\n")
			continue
		}

		if m := bulletRE.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			if inList && listOrdered {
				flushList()
			}
			inList, listOrdered = true, false
			listItems = append(listItems, m[1])
			continue
		}

		if m := numberRE.FindStringSubmatch(trimmed); m != nil {
			flushParagraph()
			if inList && !listOrdered {
				flushList()
			}
			inList, listOrdered = true, true
			listItems = append(listItems, m[1])
			continue
		}

		flushList()
		paragraph = append(paragraph, trimmed)
	}
	flushParagraph()
	flushList()

	return strings.TrimSpace(sb.String())
}

func inlineFormat(text string) string {
	escaped := html.EscapeString(text)
	escaped = boldRE.ReplaceAllString(escaped, "<strong>$1</strong>")
	escaped = italicRE.ReplaceAllString(escaped, "<em>$1</em>")
	return escaped
}

func itoa(n int) string {
	digits := "0123456789"
	if n < 10 {
		return string(digits[n])
	}
	return string(digits[n/10]) + string(digits[n%10])
}
