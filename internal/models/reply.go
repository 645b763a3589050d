// internal/models/reply.go
package models

import "ticket-responder/internal/common/adf"

// PromptContext is the rendered generation request for one ticket.
type PromptContext struct {
	System            string           `json:"system"`
	User              string           `json:"user"`
	Comments          []Comment        `json:"comments"`
	References        []ReferenceChunk `json:"references"`
	DroppedReferences int              `json:"droppedReferences"`
}

// ReplyDocument is the composed answer handed to the publisher.
type ReplyDocument struct {
	Body       string           `json:"body"`
	References []ReferenceChunk `json:"references"`
	ADF        *adf.Document    `json:"adf"`
	PlainText  string           `json:"plainText"`
	InReplyTo  string           `json:"inReplyTo,omitempty"`
}
