package parser

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	md = goldmark.New(goldmark.WithExtensions(extension.GFM))

	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips Markdown markup from body and returns readable plain text:
// heading markers, emphasis, link destinations, and raw HTML are dropped while
// the visible text (including code block contents) is kept. Wikilinks are
// replaced by their target or alias text.
func PlainText(body string) string {
	source := []byte(resolveWikilinks(body))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Separate block-level nodes by a blank line.
			if n.Type() == ast.TypeBlock && buf.Len() > 0 {
				buf.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(source))
			if v.SoftLineBreak() || v.HardLineBreak() {
				buf.WriteString("\n")
			}
		case *ast.String:
			buf.Write(v.Value)
		case *ast.AutoLink:
			buf.Write(v.URL(source))
		case *ast.CodeBlock:
			writeLines(&buf, source, v)
		case *ast.FencedCodeBlock:
			writeLines(&buf, source, v)
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := blankLinesRe.ReplaceAllString(buf.String(), "\n\n")
	return strings.TrimSpace(out)
}

func writeLines(buf *bytes.Buffer, source []byte, n interface{ Lines() *text.Segments }) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}
}

// resolveWikilinks replaces [[target]] with "target" and [[target|alias]]
// with "alias" so the link text survives markup stripping.
func resolveWikilinks(body string) string {
	return wikilinkRe.ReplaceAllStringFunc(body, func(m string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(m, "[["), "]]")
		if i := strings.Index(inner, "|"); i >= 0 {
			return strings.TrimSpace(inner[i+1:])
		}
		return strings.TrimSpace(inner)
	})
}
