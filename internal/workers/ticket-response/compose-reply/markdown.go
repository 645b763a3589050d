// internal/workers/ticket-response/compose-reply/markdown.go
package composereply

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"ticket-responder/internal/common/adf"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// markdownToADF parses the answer as GitHub flavoured markdown and returns ADF blocks.
func markdownToADF(answer string) []adf.Node {
	source := []byte(answer)
	root := markdown.Parser().Parse(text.NewReader(source))
	c := &converter{source: source}
	return c.blocks(root)
}

type converter struct {
	source []byte
}

func (c *converter) blocks(parent ast.Node) []adf.Node {
	var out []adf.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.block(n)...)
	}
	return out
}

func (c *converter) block(n ast.Node) []adf.Node {
	switch node := n.(type) {
	case *ast.Heading:
		inline := c.inlines(node, nil)
		if len(inline) == 0 {
			return nil
		}
		return []adf.Node{adf.Heading(node.Level, inline...)}

	case *ast.Paragraph, *ast.TextBlock:
		inline := c.inlines(n, nil)
		if len(inline) == 0 {
			return nil
		}
		return []adf.Node{adf.Paragraph(inline...)}

	case *ast.List:
		return c.list(node)

	case *ast.FencedCodeBlock:
		return []adf.Node{adf.CodeBlock(string(node.Language(c.source)), c.lines(node))}

	case *ast.CodeBlock:
		return []adf.Node{adf.CodeBlock("", c.lines(node))}

	case *ast.Blockquote:
		inner := c.blocks(node)
		if len(inner) == 0 {
			return nil
		}
		return []adf.Node{{Type: adf.TypeBlockquote, Content: inner}}

	case *ast.ThematicBreak:
		return []adf.Node{adf.Rule()}

	case *ast.HTMLBlock:
		raw := strings.TrimSpace(c.lines(node))
		if raw == "" {
			return nil
		}
		return []adf.Node{adf.Paragraph(adf.Text(raw))}

	case *east.Table:
		return []adf.Node{c.table(node)}

	default:
		return c.blocks(n)
	}
}

func (c *converter) list(l *ast.List) []adf.Node {
	items := make([]adf.Node, 0, l.ChildCount())
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		content := c.blocks(item)
		if len(content) == 0 {
			content = []adf.Node{adf.Paragraph()}
		}
		items = append(items, adf.Node{Type: adf.TypeListItem, Content: content})
	}
	if len(items) == 0 {
		return nil
	}

	list := adf.Node{Type: adf.TypeBulletList, Content: items}
	if l.IsOrdered() {
		list.Type = adf.TypeOrderedList
		if l.Start > 1 {
			list.Attrs = map[string]interface{}{"order": l.Start}
		}
	}
	return []adf.Node{list}
}

func (c *converter) table(t *east.Table) adf.Node {
	var rows []adf.Node
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		cellType := adf.TypeTableCell
		if _, ok := r.(*east.TableHeader); ok {
			cellType = adf.TypeTableHeader
		}
		var cells []adf.Node
		for cell := r.FirstChild(); cell != nil; cell = cell.NextSibling() {
			cells = append(cells, adf.Paragraph(c.inlines(cell, nil)...))
		}
		rows = append(rows, adf.Row(cellType, cells...))
	}
	return adf.TableOf(rows...)
}

func (c *converter) inlines(parent ast.Node, marks []adf.Mark) []adf.Node {
	var out []adf.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, c.inline(n, marks)...)
	}
	return out
}

func (c *converter) inline(n ast.Node, marks []adf.Mark) []adf.Node {
	switch node := n.(type) {
	case *ast.Text:
		out := textNode(c.text(node), marks)
		switch {
		case node.HardLineBreak():
			out = append(out, adf.HardBreak())
		case node.SoftLineBreak():
			out = append(out, textNode(" ", marks)...)
		}
		return out

	case *ast.String:
		return textNode(string(node.Value), marks)

	case *ast.CodeSpan:
		return textNode(c.plain(node), codeMarks(marks))

	case *ast.Emphasis:
		mark := adf.MarkEm
		if node.Level >= 2 {
			mark = adf.MarkStrong
		}
		return c.inlines(node, withMark(marks, adf.Mark{Type: mark}))

	case *east.Strikethrough:
		return c.inlines(node, withMark(marks, adf.Mark{Type: adf.MarkStrike}))

	case *ast.Link:
		return c.inlines(node, withMark(marks, adf.Link(string(node.Destination))))

	case *ast.AutoLink:
		return textNode(string(node.Label(c.source)), withMark(marks, adf.Link(string(node.URL(c.source)))))

	case *ast.Image:
		alt := c.plain(node)
		if alt == "" {
			alt = string(node.Destination)
		}
		return textNode(alt, withMark(marks, adf.Link(string(node.Destination))))

	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < node.Segments.Len(); i++ {
			seg := node.Segments.At(i)
			b.Write(seg.Value(c.source))
		}
		return textNode(b.String(), marks)

	case *east.TaskCheckBox:
		if node.IsChecked {
			return textNode("[x] ", marks)
		}
		return textNode("[ ] ", marks)

	default:
		return c.inlines(n, marks)
	}
}

// text returns the literal text of t. Backslash escapes are resolved except in raw
// segments such as code spans.
func (c *converter) text(t *ast.Text) string {
	value := t.Segment.Value(c.source)
	if t.IsRaw() {
		return string(value)
	}
	return string(util.UnescapePunctuations(value))
}

// plain concatenates the text below n, dropping formatting.
func (c *converter) plain(n ast.Node) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.WriteString(c.text(t))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (c *converter) lines(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(c.source))
	}
	return strings.TrimRight(b.String(), "\n")
}

func textNode(s string, marks []adf.Mark) []adf.Node {
	if s == "" {
		return nil
	}
	return []adf.Node{adf.Text(s, marks...)}
}

// withMark returns a copy of marks plus mark. A mark type already present is kept as is,
// ADF rejects duplicates.
func withMark(marks []adf.Mark, mark adf.Mark) []adf.Mark {
	for _, m := range marks {
		if m.Type == mark.Type {
			return marks
		}
	}
	out := make([]adf.Mark, len(marks), len(marks)+1)
	copy(out, marks)
	return append(out, mark)
}

// codeMarks keeps only links, the one mark ADF allows next to code.
func codeMarks(marks []adf.Mark) []adf.Mark {
	out := []adf.Mark{}
	for _, m := range marks {
		if m.Type == adf.MarkLink {
			out = append(out, m)
		}
	}
	return append(out, adf.Mark{Type: adf.MarkCode})
}
