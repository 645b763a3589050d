// internal/common/config/query.go
package config

import (
	"fmt"
	"strings"
	"time"
)

// PeriodPlaceholder is replaced in pipeline.jql with the update window clause.
const PeriodPlaceholder = "{period}"

// DefaultPeriod is used when no previous run timestamp is known.
const DefaultPeriod = "updated >= -14d"

var lastRunLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseLastRun accepts ISO-8601 style timestamps with or without seconds or zone.
// Timestamps without a zone are read as UTC.
func ParseLastRun(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range lastRunLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// PeriodClause renders the JQL fragment for tickets updated since lastRun.
func PeriodClause(lastRun time.Time) string {
	if lastRun.IsZero() {
		return DefaultPeriod
	}
	return fmt.Sprintf(`updated >= "%s"`, lastRun.UTC().Format("2006-01-02 15:04"))
}

// BuildSearchQuery substitutes the period placeholder. Queries without one are returned as is.
func BuildSearchQuery(jql string, lastRun time.Time) string {
	if !strings.Contains(jql, PeriodPlaceholder) {
		return strings.TrimSpace(jql)
	}
	return strings.TrimSpace(strings.ReplaceAll(jql, PeriodPlaceholder, PeriodClause(lastRun)))
}
