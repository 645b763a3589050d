package adf

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeading_ClampsLevel(t *testing.T) {
	assert.Equal(t, 1, Heading(0, Text("a")).Attrs["level"])
	assert.Equal(t, 6, Heading(9, Text("a")).Attrs["level"])
	assert.Equal(t, 3, Heading(3, Text("a")).Attrs["level"])
}

func TestTable_Shape(t *testing.T) {
	table := Table([]string{"A", "B"}, [][]Node{
		{Paragraph(Text("1")), Paragraph(Text("2"))},
	})

	require.Len(t, table.Content, 2)
	assert.Equal(t, TypeTableHeader, table.Content[0].Content[0].Type)
	assert.Equal(t, TypeTableCell, table.Content[1].Content[1].Type)
	assert.Equal(t, "2", table.Content[1].Content[1].Content[0].Content[0].Text)
}

func TestCodeBlock_EmptyBodyHasNoContent(t *testing.T) {
	assert.Nil(t, CodeBlock("go", "").Content)
	assert.Nil(t, CodeBlock("", "x").Attrs)
}

func TestDocument_JSON(t *testing.T) {
	doc := NewDocument(Paragraph(Text("hi", Link("https://example.com"))))

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "doc",
		"version": 1,
		"content": [{
			"type": "paragraph",
			"content": [{
				"type": "text",
				"text": "hi",
				"marks": [{"type": "link", "attrs": {"href": "https://example.com"}}]
			}]
		}]
	}`, string(raw))
}

func TestWalk_DepthFirst(t *testing.T) {
	doc := NewDocument(
		Paragraph(Text("a")),
		Expand("t", Paragraph(Text("b"))),
	)

	var texts []string
	doc.Walk(func(n Node) {
		if n.Type == TypeText {
			texts = append(texts, n.Text)
		}
	})
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestNewDocument_EmptyContentIsArray(t *testing.T) {
	raw, err := json.Marshal(NewDocument())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"doc","version":1,"content":[]}`, string(raw))
}
