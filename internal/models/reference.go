// internal/models/reference.go
package models

import "strings"

// ReferenceChunk is one retrieved passage from the vector index.
type ReferenceChunk struct {
	ID     string  `json:"id,omitempty"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Rank   int     `json:"rank"`
}

// Complete reports whether title, text and source are all present.
func (c ReferenceChunk) Complete() bool {
	return strings.TrimSpace(c.Title) != "" &&
		strings.TrimSpace(c.Text) != "" &&
		strings.TrimSpace(c.Source) != ""
}

// MissingFields lists the required metadata fields that are empty.
func (c ReferenceChunk) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(c.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(c.Text) == "" {
		missing = append(missing, "text")
	}
	if strings.TrimSpace(c.Source) == "" {
		missing = append(missing, "source")
	}
	return missing
}

// DedupeBySource keeps the first chunk for every source, preserving order.
func DedupeBySource(chunks []ReferenceChunk) []ReferenceChunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]ReferenceChunk, 0, len(chunks))
	for _, c := range chunks {
		key := strings.TrimSpace(c.Source)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
