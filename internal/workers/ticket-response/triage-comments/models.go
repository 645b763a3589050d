// internal/workers/ticket-response/triage-comments/models.go
package triagecomments

type ticketPayload struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

type commentPayload struct {
	ID      string `json:"id"`
	Author  string `json:"author"`
	Created string `json:"created,omitempty"`
	Body    string `json:"body"`
}

type userPayload struct {
	Ticket       ticketPayload          `json:"ticket"`
	Comment      commentPayload         `json:"comment"`
	OutputSchema map[string]interface{} `json:"output_schema"`
}

// scoreResponse is the JSON object the model is asked for. Scores keyed by comment
// id are accepted too since some deployments answer in that shape.
type scoreResponse struct {
	Score     *float64           `json:"score"`
	Rationale string             `json:"rationale"`
	Scores    map[string]float64 `json:"scores"`
}
