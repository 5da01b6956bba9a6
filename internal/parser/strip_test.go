package parser

import (
	"strings"
	"testing"
)

func TestPlainText_StripsMarkup(t *testing.T) {
	body := "# Heading\n\nSome **bold** and _italic_ text with a [link](https://example.com/page).\n"
	got := PlainText(body)

	for _, want := range []string{"Heading", "Some bold and italic text", "link"} {
		if !strings.Contains(got, want) {
			t.Errorf("plain text missing %q:\n%s", want, got)
		}
	}
	for _, banned := range []string{"#", "**", "](", "https://example.com/page"} {
		if strings.Contains(got, banned) {
			t.Errorf("plain text still contains markup %q:\n%s", banned, got)
		}
	}
}

func TestPlainText_WikilinksResolved(t *testing.T) {
	got := PlainText("see [[projects/roadmap]] and [[notes/a|the alias]]")
	if !strings.Contains(got, "projects/roadmap") {
		t.Errorf("wikilink target missing: %q", got)
	}
	if !strings.Contains(got, "the alias") {
		t.Errorf("wikilink alias missing: %q", got)
	}
	if strings.Contains(got, "[[") {
		t.Errorf("brackets not stripped: %q", got)
	}
}

func TestPlainText_KeepsCodeContent(t *testing.T) {
	got := PlainText("intro\n\n```go\nfmt.Println(\"hi\")\n```\n")
	if !strings.Contains(got, `fmt.Println("hi")`) {
		t.Errorf("code content missing: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("code fence not stripped: %q", got)
	}
}

func TestPlainText_DropsRawHTML(t *testing.T) {
	got := PlainText("before\n\n<div class=\"x\">inside</div>\n\nafter")
	if strings.Contains(got, "<div") {
		t.Errorf("raw html survived: %q", got)
	}
	if !strings.Contains(got, "before") || !strings.Contains(got, "after") {
		t.Errorf("surrounding text lost: %q", got)
	}
}

func TestPlainText_Empty(t *testing.T) {
	if got := PlainText(""); got != "" {
		t.Errorf("PlainText(\"\") = %q, want empty", got)
	}
}
