// internal/workers/ticket-response/build-prompt/render.go
package buildprompt

import (
	"fmt"
	"strings"

	"ticket-responder/internal/models"
)

const (
	introLine   = "Use only the material below to produce the deliverables described in the system prompt. If information is missing, list clarifying questions."
	closingLine = "End of input. Follow the Output Structure from the system prompt. Do not invent details."
	emptyLine   = "(none)"
)

// renderUser builds the user message. Output depends only on the arguments.
func renderUser(summary string, comments []models.Comment, refs []models.ReferenceChunk) string {
	parts := []string{
		introLine,
		"# Topic\n" + clean(summary),
	}

	commentLines := []string{"## Curated developer comments"}
	if len(comments) == 0 {
		commentLines = append(commentLines, emptyLine)
	}
	for i, c := range comments {
		commentLines = append(commentLines, fmt.Sprintf("### Comment %d — %s\n%s", i+1, clean(c.Author), clean(c.Body)))
	}
	parts = append(parts, strings.Join(commentLines, "\n\n"))

	refLines := []string{"## Reference documents (retrieved)"}
	if len(refs) == 0 {
		refLines = append(refLines, emptyLine)
	}
	for i, r := range refs {
		refLines = append(refLines, fmt.Sprintf("### Reference %d: %s\n%s", i+1, clean(r.Title), demoteHeadings(clean(r.Text))))
	}
	parts = append(parts, strings.Join(refLines, "\n\n"))

	parts = append(parts, closingLine)
	return strings.Join(parts, "\n\n")
}

func clean(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\r", ""))
}

// demoteHeadings pushes markdown headings in reference text one level down so they
// nest under the reference's own heading.
func demoteHeadings(text string) string {
	if strings.HasPrefix(text, "#") {
		text = "#" + text
	}
	return strings.ReplaceAll(text, "\n#", "\n##")
}
