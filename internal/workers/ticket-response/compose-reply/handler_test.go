// internal/workers/ticket-response/compose-reply/handler_test.go
package composereply

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-responder/internal/common/adf"
	"ticket-responder/internal/common/config"
	"ticket-responder/internal/common/logger"
	"ticket-responder/internal/models"
)

func createTestConfig() *Config {
	return &Config{SnippetChars: 20, ReferencesTitle: "References"}
}

func newTestHandler(t *testing.T, cfg *Config) *Handler {
	return NewHandler(cfg, logger.NewTestLogger(t))
}

func blockTypes(doc *adf.Document) []string {
	types := make([]string, len(doc.Content))
	for i, n := range doc.Content {
		types[i] = n.Type
	}
	return types
}

func findExpand(doc *adf.Document) (adf.Node, bool) {
	for _, n := range doc.Content {
		if n.Type == adf.TypeExpand {
			return n, true
		}
	}
	return adf.Node{}, false
}

// ==========================
// References section
// ==========================

func TestExecute_DeduplicatesBySource(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{
		TicketKey: "SUP-1",
		Answer:    "Re-seed the sequence.",
		References: []models.ReferenceChunk{
			{Title: "Numbering", Text: "first passage", Source: "doc-42", Rank: 1},
			{Title: "Numbering", Text: "second passage", Source: "doc-42", Rank: 2},
			{Title: "Billing", Text: "other", Source: "doc-7", Rank: 3},
		},
	})
	require.NoError(t, err)

	reply := out.Reply
	require.Len(t, reply.References, 2)
	assert.Equal(t, "first passage", reply.References[0].Text)

	expand, ok := findExpand(reply.ADF)
	require.True(t, ok)
	assert.Equal(t, "References", expand.Attrs["title"])

	table := expand.Content[0]
	require.Equal(t, adf.TypeTable, table.Type)
	// header plus one row per unique source
	require.Len(t, table.Content, 3)

	var doc42Rows int
	for _, row := range table.Content[1:] {
		if row.Content[1].Content[0].Content[0].Text == "doc-42" {
			doc42Rows++
		}
	}
	assert.Equal(t, 1, doc42Rows)
	assert.Equal(t, 1, strings.Count(reply.PlainText, "|doc-42|"))
}

func TestExecute_NoReferencesOmitsSection(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{Answer: "All good."})
	require.NoError(t, err)

	_, ok := findExpand(out.Reply.ADF)
	assert.False(t, ok)
	assert.Equal(t, []string{adf.TypeParagraph}, blockTypes(out.Reply.ADF))
	assert.Equal(t, "All good.", out.Reply.PlainText)
	assert.NotNil(t, out.Reply.References)
	assert.Empty(t, out.Reply.References)
}

func TestExecute_ReferenceRow(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{
		Answer: "Restart the *worker*.\n\nSee [runbook](https://wiki/x).",
		References: []models.ReferenceChunk{{
			Title:  "Runbook",
			Text:   "Step one:   drain the queue\nbefore restart.",
			Source: "https://kb.example.com/runbook",
		}},
	})
	require.NoError(t, err)

	expand, ok := findExpand(out.Reply.ADF)
	require.True(t, ok)
	row := expand.Content[0].Content[1]
	require.Len(t, row.Content, 3)

	title := row.Content[0].Content[0].Content[0]
	assert.Equal(t, "Runbook", title.Text)
	require.Len(t, title.Marks, 1)
	assert.Equal(t, adf.MarkLink, title.Marks[0].Type)
	assert.Equal(t, "https://kb.example.com/runbook", title.Marks[0].Attrs["href"])
	assert.Equal(t, "Step one: drain the…", row.Content[2].Content[0].Content[0].Text)

	want := "Restart the _worker_.\n\n" +
		"See [runbook|https://wiki/x].\n\n" +
		"*References*\n" +
		"||Reference||Source||Excerpt||\n" +
		"|[Runbook|https://kb.example.com/runbook]|https://kb.example.com/runbook|Step one: drain the…|"
	assert.Equal(t, want, out.Reply.PlainText)
}

func TestExecute_NonURLSourceIsNotLinked(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{
		Answer:     "Done.",
		References: []models.ReferenceChunk{{Title: "Guide", Text: "t", Source: "docs/guide.md"}},
	})
	require.NoError(t, err)

	expand, _ := findExpand(out.Reply.ADF)
	title := expand.Content[0].Content[1].Content[0].Content[0].Content[0]
	assert.Empty(t, title.Marks)
	assert.Contains(t, out.Reply.PlainText, "|Guide|docs/guide.md|t|")
}

func TestExecute_ZeroSnippetDropsExcerptColumn(t *testing.T) {
	cfg := createTestConfig()
	cfg.SnippetChars = 0
	h := newTestHandler(t, cfg)

	out, err := h.Execute(context.Background(), &Input{
		Answer:     "Done.",
		References: []models.ReferenceChunk{{Title: "Guide", Text: "t", Source: "doc-1"}},
	})
	require.NoError(t, err)

	expand, _ := findExpand(out.Reply.ADF)
	table := expand.Content[0]
	assert.Len(t, table.Content[0].Content, 2)
	assert.Len(t, table.Content[1].Content, 2)
	assert.Contains(t, out.Reply.PlainText, "||Reference||Source||\n|Guide|doc-1|")
}

func TestExecute_EscapesPipesInCells(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{
		Answer:     "Done.",
		References: []models.ReferenceChunk{{Title: "A|B", Text: "x|y", Source: "doc-1"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out.Reply.PlainText, `|A\|B|doc-1|x\|y|`)
}

// ==========================
// Markdown rendering
// ==========================

func TestExecute_MarkdownBlocks(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	answer := "## Fix\n\n" +
		"Run **this** and `cmd`.\n\n" +
		"- one\n- two\n\n" +
		"```sql\nSELECT 1;\n```\n\n" +
		"> note\n\n" +
		"---\n"

	out, err := h.Execute(context.Background(), &Input{Answer: answer})
	require.NoError(t, err)

	doc := out.Reply.ADF
	assert.Equal(t, []string{
		adf.TypeHeading,
		adf.TypeParagraph,
		adf.TypeBulletList,
		adf.TypeCodeBlock,
		adf.TypeBlockquote,
		adf.TypeRule,
	}, blockTypes(doc))

	assert.Equal(t, 2, doc.Content[0].Attrs["level"])
	assert.Len(t, doc.Content[2].Content, 2)
	assert.Equal(t, "sql", doc.Content[3].Attrs["language"])
	assert.Equal(t, "SELECT 1;", doc.Content[3].Content[0].Text)

	marks := map[string]string{}
	doc.Walk(func(n adf.Node) {
		if n.Type == adf.TypeText && len(n.Marks) > 0 {
			marks[n.Text] = n.Marks[0].Type
		}
	})
	assert.Equal(t, adf.MarkStrong, marks["this"])
	assert.Equal(t, adf.MarkCode, marks["cmd"])

	assert.Equal(t,
		"h2. Fix\n\n"+
			"Run *this* and {{cmd}}.\n\n"+
			"* one\n* two\n\n"+
			"{code:sql}\nSELECT 1;\n{code}\n\n"+
			"{quote}\nnote\n{quote}\n\n"+
			"----",
		out.Reply.PlainText)
}

func TestExecute_ResolvesBackslashEscapes(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{Answer: "Pass \\*args\\* to `a\\*b`.\n"})
	require.NoError(t, err)

	var b strings.Builder
	out.Reply.ADF.Walk(func(n adf.Node) {
		if n.Type == adf.TypeText {
			b.WriteString(n.Text)
		}
	})
	assert.Equal(t, "Pass *args* to a\\*b.", b.String())
}

func TestExecute_NestedOrderedList(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{Answer: "3. a\n   - b\n4. c\n"})
	require.NoError(t, err)

	list := out.Reply.ADF.Content[0]
	assert.Equal(t, adf.TypeOrderedList, list.Type)
	assert.Equal(t, 3, list.Attrs["order"])
	assert.Equal(t, "# a\n#* b\n# c", out.Reply.PlainText)
}

func TestExecute_GFMTable(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{Answer: "| Step | Owner |\n|---|---|\n| drain | ops |\n"})
	require.NoError(t, err)

	table := out.Reply.ADF.Content[0]
	require.Equal(t, adf.TypeTable, table.Type)
	require.Len(t, table.Content, 2)
	assert.Equal(t, adf.TypeTableHeader, table.Content[0].Content[0].Type)
	assert.Equal(t, "||Step||Owner||\n|drain|ops|", out.Reply.PlainText)
}

func TestExecute_CarriesReplyTarget(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	out, err := h.Execute(context.Background(), &Input{Answer: "ok\r\n", InReplyTo: "10001"})
	require.NoError(t, err)
	assert.Equal(t, "10001", out.Reply.InReplyTo)
	assert.Equal(t, "ok", out.Reply.Body)
}

// ==========================
// Failures
// ==========================

func TestExecute_Failures(t *testing.T) {
	h := newTestHandler(t, createTestConfig())

	tests := []struct {
		name  string
		input *Input
		want  error
	}{
		{name: "nil input", input: nil, want: ErrInvalidInput},
		{name: "empty answer", input: &Input{Answer: "  \n "}, want: ErrComposeFailed},
		{
			name: "reference without title",
			input: &Input{
				Answer:     "ok",
				References: []models.ReferenceChunk{{Text: "t", Source: "doc-1"}},
			},
			want: ErrComposeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

// ==========================
// Helpers
// ==========================

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", snippet("  short ", 10))
	assert.Equal(t, "a b…", snippet("a  b c d", 4))
	assert.Equal(t, "héllo", snippet("héllo", 5))
}

func TestNewConfig_DefaultTitle(t *testing.T) {
	cfg := &config.Config{}
	cfg.Compose.SnippetChars = 80

	c := NewConfig(cfg)
	assert.Equal(t, "References", c.ReferencesTitle)
	assert.Equal(t, 80, c.SnippetChars)
}
