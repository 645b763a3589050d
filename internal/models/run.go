// internal/models/run.go
package models

import "time"

// TicketState is the position of a ticket in the pipeline.
type TicketState string

const (
	StateFetched   TicketState = "FETCHED"
	StateSelected  TicketState = "SELECTED"
	StateRetrieved TicketState = "RETRIEVED"
	StatePrompted  TicketState = "PROMPTED"
	StateGenerated TicketState = "GENERATED"
	StateComposed  TicketState = "COMPOSED"
	StatePublished TicketState = "PUBLISHED"
	StateFailed    TicketState = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s TicketState) IsTerminal() bool {
	return s == StatePublished || s == StateFailed
}

// Stage names the step that moves a ticket out of a state.
type Stage string

const (
	StageSelect   Stage = "select"
	StageRetrieve Stage = "retrieve"
	StagePrompt   Stage = "prompt"
	StageGenerate Stage = "generate"
	StageCompose  Stage = "compose"
	StagePublish  Stage = "publish"
)

// TicketResult is the outcome of one ticket's pipeline run.
type TicketResult struct {
	Key               string        `json:"key"`
	State             TicketState   `json:"state"`
	FailedStage       Stage         `json:"failedStage,omitempty"`
	ErrorCode         string        `json:"errorCode,omitempty"`
	Error             string        `json:"error,omitempty"`
	SelectedComments  int           `json:"selectedComments"`
	References        int           `json:"references"`
	DroppedReferences int           `json:"droppedReferences"`
	Duration          time.Duration `json:"duration"`
}

// RunSummary aggregates every ticket processed in one run.
type RunSummary struct {
	RunID      string         `json:"runId"`
	Query      string         `json:"query"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Processed  int            `json:"processed"`
	Published  int            `json:"published"`
	Failed     int            `json:"failed"`
	Failures   []TicketResult `json:"failures,omitempty"`
}

// Add folds a terminal ticket result into the summary.
func (s *RunSummary) Add(r TicketResult) {
	s.Processed++
	switch r.State {
	case StatePublished:
		s.Published++
	case StateFailed:
		s.Failed++
		s.Failures = append(s.Failures, r)
	}
}
