// internal/workers/ticket-response/compose-reply/models.go
package composereply

import "ticket-responder/internal/models"

type Input struct {
	TicketKey  string
	Answer     string
	References []models.ReferenceChunk
	InReplyTo  string
}

type Output struct {
	Reply *models.ReplyDocument
}
