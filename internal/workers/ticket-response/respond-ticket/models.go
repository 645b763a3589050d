// internal/workers/ticket-response/respond-ticket/models.go
package respondticket

import "ticket-responder/internal/models"

// Input selects the tickets of one run. TicketKey wins over JQL; with neither set the
// configured query is used.
type Input struct {
	JQL       string `json:"jql,omitempty"`
	TicketKey string `json:"ticketKey,omitempty"`
}

// Output is the job completion payload.
type Output struct {
	RunID     string             `json:"runId"`
	Processed int                `json:"processed"`
	Published int                `json:"published"`
	Failed    int                `json:"failed"`
	Summary   *models.RunSummary `json:"runSummary"`
}
