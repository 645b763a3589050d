// internal/workers/ticket-response/select-comments/heading.go
package selectcomments

import (
	"regexp"
	"strings"

	"ticket-responder/internal/models"
)

var (
	wikiHeading     = regexp.MustCompile(`^[hH]([1-6])\.\s*(.*\S)\s*$`)
	markdownHeading = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)
)

// ParseHeading reads the first non-blank line of body as a structural heading.
// Jira wiki (h1. .. h6.) and Markdown (# .. ######) headings are recognised.
func ParseHeading(body string) (models.Heading, bool) {
	line := firstLine(body)
	if line == "" {
		return models.Heading{}, false
	}

	if m := wikiHeading.FindStringSubmatch(line); m != nil {
		return models.Heading{
			Level:  int(m[1][0] - '0'),
			Text:   strings.TrimSpace(m[2]),
			Syntax: models.HeadingSyntaxWiki,
		}, true
	}

	if m := markdownHeading.FindStringSubmatch(line); m != nil && strings.TrimSpace(m[2]) != "" {
		return models.Heading{
			Level:  len(m[1]),
			Text:   strings.TrimSpace(m[2]),
			Syntax: models.HeadingSyntaxMarkdown,
		}, true
	}

	return models.Heading{}, false
}

func firstLine(body string) string {
	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// MatchKeyword returns the first keyword contained in the heading text, ignoring case.
func MatchKeyword(h models.Heading, keywords []string) (string, bool) {
	text := strings.ToLower(h.Text)
	for _, kw := range keywords {
		needle := strings.ToLower(strings.TrimSpace(kw))
		if needle == "" {
			continue
		}
		if strings.Contains(text, needle) {
			return kw, true
		}
	}
	return "", false
}
