// internal/workers/ticket-response/select-comments/models.go
package selectcomments

import "ticket-responder/internal/models"

type Input struct {
	Ticket *models.Ticket `json:"ticket"`
}

type Output struct {
	Selected   []models.Comment     `json:"selected"`
	Candidates []Candidate          `json:"candidates"`
	Scores     []models.TriageScore `json:"scores"`
}

// Candidate is a comment whose heading matched a keyword.
type Candidate struct {
	Comment models.Comment `json:"comment"`
	Heading models.Heading `json:"heading"`
	Keyword string         `json:"keyword"`
}
