// internal/common/adf/adf.go
// Package adf holds the Atlassian Document Format node types used for Jira comment bodies.
package adf

// Node types
const (
	TypeDoc         = "doc"
	TypeParagraph   = "paragraph"
	TypeText        = "text"
	TypeHeading     = "heading"
	TypeBulletList  = "bulletList"
	TypeOrderedList = "orderedList"
	TypeListItem    = "listItem"
	TypeCodeBlock   = "codeBlock"
	TypeBlockquote  = "blockquote"
	TypeRule        = "rule"
	TypeHardBreak   = "hardBreak"
	TypeExpand      = "expand"
	TypeTable       = "table"
	TypeTableRow    = "tableRow"
	TypeTableHeader = "tableHeader"
	TypeTableCell   = "tableCell"
)

// Mark types
const (
	MarkStrong = "strong"
	MarkEm     = "em"
	MarkCode   = "code"
	MarkStrike = "strike"
	MarkLink   = "link"
)

// Document is the root ADF node.
type Document struct {
	Type    string `json:"type"`
	Version int    `json:"version"`
	Content []Node `json:"content"`
}

// Node is any block or inline ADF node.
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []Node                 `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

// Mark decorates a text node.
type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

// NewDocument returns a version 1 document with the given blocks.
func NewDocument(blocks ...Node) *Document {
	if blocks == nil {
		blocks = []Node{}
	}
	return &Document{Type: TypeDoc, Version: 1, Content: blocks}
}

// Text builds a text node. Empty text is not valid ADF, callers should skip it.
func Text(s string, marks ...Mark) Node {
	n := Node{Type: TypeText, Text: s}
	if len(marks) > 0 {
		n.Marks = marks
	}
	return n
}

// Link builds a link mark.
func Link(href string) Mark {
	return Mark{Type: MarkLink, Attrs: map[string]interface{}{"href": href}}
}

// Paragraph wraps inline nodes.
func Paragraph(inline ...Node) Node {
	return Node{Type: TypeParagraph, Content: inline}
}

// Heading builds a heading block, clamping level to 1..6.
func Heading(level int, inline ...Node) Node {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return Node{Type: TypeHeading, Attrs: map[string]interface{}{"level": level}, Content: inline}
}

// Expand builds a collapsible section.
func Expand(title string, blocks ...Node) Node {
	return Node{Type: TypeExpand, Attrs: map[string]interface{}{"title": title}, Content: blocks}
}

// CodeBlock builds a code block. An empty body yields a block without content.
func CodeBlock(language, body string) Node {
	n := Node{Type: TypeCodeBlock}
	if language != "" {
		n.Attrs = map[string]interface{}{"language": language}
	}
	if body != "" {
		n.Content = []Node{Text(body)}
	}
	return n
}

func Rule() Node { return Node{Type: TypeRule} }

func HardBreak() Node { return Node{Type: TypeHardBreak} }

// Row builds a table row whose cells are of cellType (TypeTableHeader or TypeTableCell).
// Each cell holds the given block.
func Row(cellType string, cells ...Node) Node {
	out := make([]Node, 0, len(cells))
	for _, cell := range cells {
		out = append(out, Node{Type: cellType, Content: []Node{cell}})
	}
	return Node{Type: TypeTableRow, Content: out}
}

// TableOf wraps prebuilt rows.
func TableOf(rows ...Node) Node {
	return Node{
		Type: TypeTable,
		Attrs: map[string]interface{}{
			"isNumberColumnEnabled": false,
			"layout":                "default",
		},
		Content: rows,
	}
}

// Table builds a table from a header row and body rows of plain cells.
func Table(header []string, rows [][]Node) Node {
	headerCells := make([]Node, 0, len(header))
	for _, h := range header {
		headerCells = append(headerCells, Paragraph(Text(h)))
	}

	tableRows := []Node{Row(TypeTableHeader, headerCells...)}
	for _, row := range rows {
		tableRows = append(tableRows, Row(TypeTableCell, row...))
	}
	return TableOf(tableRows...)
}

// Walk visits every node in depth-first order.
func (d *Document) Walk(fn func(Node)) {
	var visit func(nodes []Node)
	visit = func(nodes []Node) {
		for _, n := range nodes {
			fn(n)
			visit(n.Content)
		}
	}
	visit(d.Content)
}
