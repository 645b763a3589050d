// internal/models/ticket.go
package models

import "time"

// Ticket is the snapshot of a support ticket fetched once per run.
type Ticket struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	Summary  string    `json:"summary"`
	Comments []Comment `json:"comments"`
}

// Comment is one entry of a ticket's discussion thread.
type Comment struct {
	ID       string    `json:"id"`
	Author   string    `json:"author"`
	Body     string    `json:"body"`
	Position int       `json:"position"`
	Created  time.Time `json:"created,omitempty"`
}

// HeadingSyntax identifies the markup a heading was written in.
type HeadingSyntax string

const (
	HeadingSyntaxWiki     HeadingSyntax = "wiki"
	HeadingSyntaxMarkdown HeadingSyntax = "markdown"
)

// Heading is the structural heading token parsed from the first line of a comment body.
type Heading struct {
	Level  int           `json:"level"`
	Text   string        `json:"text"`
	Syntax HeadingSyntax `json:"syntax"`
}

// TriageScore is the relevance verdict for one candidate comment.
type TriageScore struct {
	CommentID   string  `json:"commentId"`
	Score       float64 `json:"score"`
	Threshold   float64 `json:"threshold"`
	Rationale   string  `json:"rationale,omitempty"`
	Unparseable bool    `json:"unparseable,omitempty"`
	Cached      bool    `json:"cached,omitempty"`
}

// Selected reports whether the score clears the threshold. The boundary is inclusive.
func (s TriageScore) Selected() bool {
	return !s.Unparseable && s.Score >= s.Threshold
}
