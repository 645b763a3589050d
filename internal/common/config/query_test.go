// internal/common/config/query_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseLastRun(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
		ok       bool
	}{
		{"2026-03-01T08:30:00Z", "2026-03-01 08:30", true},
		{"2026-03-01T08:30:00+02:00", "2026-03-01 06:30", true},
		{"2026-03-01T08:30", "2026-03-01 08:30", true},
		{"2026-03-01T08:30Z", "2026-03-01 08:30", true},
		{"2026-03-01 08:30:59", "2026-03-01 08:30", true},
		{"  ", "", false},
		{"yesterday", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := ParseLastRun(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.expected, got.Format("2006-01-02 15:04"))
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	lastRun := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

	assert.Equal(t,
		`project = DOC AND updated >= "2026-03-01 08:30"`,
		BuildSearchQuery("project = DOC AND {period}", lastRun))

	assert.Equal(t,
		"project = DOC AND updated >= -14d",
		BuildSearchQuery("project = DOC AND {period}", time.Time{}))

	assert.Equal(t,
		"project = DOC ORDER BY updated",
		BuildSearchQuery("  project = DOC ORDER BY updated ", lastRun))
}
