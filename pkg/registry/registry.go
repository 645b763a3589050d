// pkg/registry/registry.go
// Package registry describes the workflow job types served by ticket-responder.
package registry

import (
	"fmt"

	"ticket-responder/internal/common/validation"
)

const TicketResponseTaskType = "ticket-response"

// Default is the registry of every job type this module serves.
var Default = ActivityRegistry{
	Version:     "1.0.0",
	LastUpdated: "2026-10-01",
	Activities: []Activity{
		{
			ID:          "ticket-response",
			DisplayName: "Respond to resolved tickets",
			Description: "Selects triaged heading comments, retrieves reference chunks and publishes a generated reply to each matching ticket.",
			Category:    "support",
			Version:     "1.0.0",
			TaskType:    TicketResponseTaskType,
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"jql":       map[string]interface{}{"type": "string"},
					"ticketKey": map[string]interface{}{"type": "string", "pattern": "^[A-Za-z][A-Za-z0-9_]*-[0-9]+$"},
				},
			},
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"runId", "processed", "published", "failed"},
				"properties": map[string]interface{}{
					"runId":      map[string]interface{}{"type": "string"},
					"processed":  map[string]interface{}{"type": "integer"},
					"published":  map[string]interface{}{"type": "integer"},
					"failed":     map[string]interface{}{"type": "integer"},
					"runSummary": map[string]interface{}{"type": "object"},
				},
			},
			ErrorCodes: []string{"CONFIGURATION_INVALID", "TICKET_SEARCH_FAILED"},
			Tags:       []string{"jira", "rag", "triage"},
		},
	},
}

var inputSchemas = map[string]*validation.Schema{}

func init() {
	for _, a := range Default.Activities {
		inputSchemas[a.TaskType] = validation.MustCompile(a.InputSchema)
	}
}

// Lookup returns the activity registered for taskType.
func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// ValidateVariables checks raw job variables against the input schema of taskType.
// Variables the schema does not mention are allowed; process scopes carry many.
func ValidateVariables(taskType string, raw []byte) error {
	schema, ok := inputSchemas[taskType]
	if !ok {
		return fmt.Errorf("unknown task type %q", taskType)
	}
	res, err := schema.ValidateJSON(raw)
	if err != nil {
		return err
	}
	if !res.Valid {
		return fmt.Errorf("job variables: %s", res.Error())
	}
	return nil
}
