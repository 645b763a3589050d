// internal/workers/ticket-response/triage-comments/config.go
package triagecomments

import (
	"time"

	"ticket-responder/internal/common/config"
)

const DefaultInstruction = "You are a senior triage engineer. The Jira issue has already been resolved. " +
	"Rate how relevant the provided comment was to diagnosing or fixing the issue." +
	"\nGuidelines:" +
	"\n- Relevant: technical findings, steps taken, logs, config, root-cause clues, links to authoritative docs, direct fix instructions, code changes." +
	"\n- Not relevant: chit-chat, thanks, scheduling, duplicated text, off-topic, meta commentary." +
	"\n- Prefer comments that contain concrete steps, error messages, or references that directly contributed to the resolution." +
	"\nReturn a single JSON object only with keys: score (float 0..1) and rationale (one short sentence)."

type Config struct {
	Threshold       float64
	Timeout         time.Duration
	Instruction     string
	MaxSummaryChars int
	MaxCommentChars int
}

// NewConfig derives the scorer settings. An empty instruction selects DefaultInstruction.
func NewConfig(cfg *config.Config, instruction string) *Config {
	if instruction == "" {
		instruction = DefaultInstruction
	}
	return &Config{
		Threshold:       cfg.Pipeline.Threshold,
		Timeout:         config.GetDuration(cfg.Pipeline.Timeouts.Scoring),
		Instruction:     instruction,
		MaxSummaryChars: 500,
		MaxCommentChars: 1500,
	}
}
