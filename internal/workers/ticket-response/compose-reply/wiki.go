// internal/workers/ticket-response/compose-reply/wiki.go
package composereply

import (
	"fmt"
	"strings"

	"ticket-responder/internal/common/adf"
)

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

// wikiBlocks renders ADF blocks as Jira wiki markup, one blank line between blocks.
func wikiBlocks(nodes []adf.Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if s := wikiBlock(n, ""); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func wikiBlock(n adf.Node, listPrefix string) string {
	switch n.Type {
	case adf.TypeHeading:
		return fmt.Sprintf("h%v. %s", n.Attrs["level"], wikiInline(n.Content, false))

	case adf.TypeParagraph:
		return wikiInline(n.Content, false)

	case adf.TypeBulletList, adf.TypeOrderedList:
		marker := "*"
		if n.Type == adf.TypeOrderedList {
			marker = "#"
		}
		prefix := listPrefix + marker
		lines := make([]string, 0, len(n.Content))
		for _, item := range n.Content {
			lines = append(lines, wikiListItem(item, prefix))
		}
		return strings.Join(lines, "\n")

	case adf.TypeCodeBlock:
		open := "{code}"
		if lang, ok := n.Attrs["language"].(string); ok && lang != "" {
			open = "{code:" + lang + "}"
		}
		body := ""
		if len(n.Content) > 0 {
			body = n.Content[0].Text
		}
		return open + "\n" + body + "\n{code}"

	case adf.TypeBlockquote:
		return "{quote}\n" + wikiBlocks(n.Content) + "\n{quote}"

	case adf.TypeRule:
		return "----"

	case adf.TypeTable:
		return wikiTable(n)

	case adf.TypeExpand:
		title, _ := n.Attrs["title"].(string)
		body := wikiBlocks(n.Content)
		if title == "" {
			return body
		}
		return "*" + title + "*\n" + body
	}
	return ""
}

func wikiListItem(item adf.Node, prefix string) string {
	var lines []string
	head := ""
	for _, child := range item.Content {
		switch child.Type {
		case adf.TypeBulletList, adf.TypeOrderedList:
			lines = append(lines, wikiBlock(child, prefix))
		default:
			s := wikiBlock(child, "")
			if head == "" && len(lines) == 0 {
				head = s
				continue
			}
			lines = append(lines, s)
		}
	}
	return strings.Join(append([]string{prefix + " " + head}, lines...), "\n")
}

func wikiTable(n adf.Node) string {
	lines := make([]string, 0, len(n.Content))
	for _, row := range n.Content {
		var b strings.Builder
		for _, cell := range row.Content {
			sep := "|"
			if cell.Type == adf.TypeTableHeader {
				sep = "||"
			}
			b.WriteString(sep)
			var parts []string
			for _, block := range cell.Content {
				parts = append(parts, wikiInline(block.Content, true))
			}
			b.WriteString(strings.Join(parts, " "))
		}
		if len(row.Content) > 0 && row.Content[0].Type == adf.TypeTableHeader {
			b.WriteString("||")
		} else {
			b.WriteString("|")
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func wikiInline(nodes []adf.Node, inCell bool) string {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Type {
		case adf.TypeHardBreak:
			if inCell {
				b.WriteByte(' ')
			} else {
				b.WriteByte('\n')
			}
		case adf.TypeText:
			b.WriteString(wikiText(n, inCell))
		}
	}
	return b.String()
}

func wikiText(n adf.Node, inCell bool) string {
	s := n.Text
	if inCell {
		s = cellEscaper.Replace(s)
	}
	href := ""
	for _, m := range n.Marks {
		switch m.Type {
		case adf.MarkCode:
			s = "{{" + s + "}}"
		case adf.MarkStrong:
			s = "*" + s + "*"
		case adf.MarkEm:
			s = "_" + s + "_"
		case adf.MarkStrike:
			s = "-" + s + "-"
		case adf.MarkLink:
			href, _ = m.Attrs["href"].(string)
		}
	}
	if href != "" {
		return "[" + s + "|" + href + "]"
	}
	return s
}
