// internal/workers/ticket-response/build-prompt/models.go
package buildprompt

import "ticket-responder/internal/models"

type Input struct {
	Ticket     *models.Ticket          `json:"ticket"`
	Comments   []models.Comment        `json:"comments"`
	References []models.ReferenceChunk `json:"references"`
}

type Output struct {
	Prompt *models.PromptContext `json:"prompt"`
}
