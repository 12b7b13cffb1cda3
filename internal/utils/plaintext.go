package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ThematicSeparator replaces horizontal rules in plain-text output
const ThematicSeparator = "──────────"

var (
	markdownParser = goldmark.New().Parser()
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
)

// MarkdownToPlainText renders markdown as plain text for chat surfaces that
// show no markup: emphasis and headings lose their markers, list items
// become "•" or "1." lines, links keep their target in parentheses and
// horizontal rules become ThematicSeparator.
func MarkdownToPlainText(markdown string) string {
	source := []byte(markdown)
	doc := markdownParser.Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph:
			if !entering {
				b.WriteString("\n")
				if _, inItem := node.Parent().(*ast.ListItem); !inItem {
					b.WriteString("\n")
				}
			}
		case *ast.TextBlock:
			if !entering {
				b.WriteString("\n")
			}
		case *ast.List:
			if !entering {
				if _, nested := node.Parent().(*ast.ListItem); !nested {
					b.WriteString("\n")
				}
			}
		case *ast.ListItem:
			if entering {
				ensureLineStart(&b)
				b.WriteString(strings.Repeat("  ", listDepth(node)))
				b.WriteString(listMarker(node))
			}
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(source))
				if node.HardLineBreak() || node.SoftLineBreak() {
					b.WriteString("\n")
				}
			}
		case *ast.String:
			if entering {
				b.Write(node.Value)
			}
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			if entering {
				lines := node.Lines()
				for i := 0; i < lines.Len(); i++ {
					segment := lines.At(i)
					b.Write(segment.Value(source))
				}
				b.WriteString("\n")
			}
			return ast.WalkSkipChildren, nil
		case *ast.ThematicBreak:
			if entering {
				ensureLineStart(&b)
				b.WriteString(ThematicSeparator)
				b.WriteString("\n\n")
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			if !entering {
				dest := string(node.Destination)
				if dest != "" && !strings.HasPrefix(dest, "#") {
					b.WriteString(" (")
					b.WriteString(dest)
					b.WriteString(")")
				}
			}
		case *ast.RawHTML, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	out := extraNewlines.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(out)
}

func ensureLineStart(b *strings.Builder) {
	s := b.String()
	if len(s) > 0 && !strings.HasSuffix(s, "\n") {
		b.WriteString("\n")
	}
}

// listDepth counts enclosing lists beyond the outermost one
func listDepth(item *ast.ListItem) int {
	depth := 0
	for p := item.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*ast.List); ok {
			depth++
		}
	}
	if depth > 0 {
		depth--
	}
	return depth
}

func listMarker(item *ast.ListItem) string {
	list, ok := item.Parent().(*ast.List)
	if !ok || !list.IsOrdered() {
		return "• "
	}
	idx := 0
	for sib := item.PreviousSibling(); sib != nil; sib = sib.PreviousSibling() {
		idx++
	}
	return strconv.Itoa(list.Start+idx) + ". "
}
