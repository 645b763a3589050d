// internal/workers/ticket-response/retrieve-references/models.go
package retrievereferences

import "ticket-responder/internal/models"

type Input struct {
	Ticket   *models.Ticket   `json:"ticket"`
	Selected []models.Comment `json:"selected"`
}

type Output struct {
	Query      string                  `json:"query"`
	References []models.ReferenceChunk `json:"references"`
	Dropped    int                     `json:"dropped"`
}
