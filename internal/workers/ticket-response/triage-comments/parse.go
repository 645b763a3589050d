// internal/workers/ticket-response/triage-comments/parse.go
package triagecomments

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"ticket-responder/internal/common/validation"
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

var responseSchema = validation.MustCompile(map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		"rationale": map[string]interface{}{"type": "string"},
		"scores": map[string]interface{}{
			"type": "object",
			"additionalProperties": map[string]interface{}{
				"type": "number", "minimum": 0, "maximum": 1,
			},
		},
	},
	"anyOf": []interface{}{
		map[string]interface{}{"required": []interface{}{"score"}},
		map[string]interface{}{"required": []interface{}{"scores"}},
	},
})

// extractJSON returns the first complete JSON object in the model output. Decoding stops at
// the end of that object, so trailing prose with braces is ignored.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if json.Valid([]byte(s)) && strings.HasPrefix(s, "{") {
		return s, true
	}
	for i := strings.IndexByte(s, '{'); i >= 0; {
		var obj json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[i:])).Decode(&obj); err == nil {
			return string(obj), true
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", false
}

// parseScore turns model output into a score for commentID. The boolean is false when
// nothing usable was found: no schema-valid object and no bare number in [0, 1].
func parseScore(raw, commentID string) (score float64, rationale string, ok bool) {
	if obj, found := extractJSON(raw); found {
		res, err := responseSchema.ValidateJSON([]byte(obj))
		if err != nil || !res.Valid {
			return 0, "", false
		}
		var resp scoreResponse
		if err := json.Unmarshal([]byte(obj), &resp); err != nil {
			return 0, "", false
		}
		if resp.Score != nil {
			return *resp.Score, strings.TrimSpace(resp.Rationale), true
		}
		if v, exists := resp.Scores[commentID]; exists {
			return v, strings.TrimSpace(resp.Rationale), true
		}
		return 0, "", false
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 || v > 1 {
		return 0, "", false
	}
	return v, "", true
}

// compact trims text to limit runes, keeping a short tail so closing clues survive.
func compact(text string, limit int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r", ""))
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}
	tail := limit / 8
	head := limit - tail - 3
	if head < 0 {
		head = 0
	}
	return string(runes[:head]) + "\n…\n" + string(runes[len(runes)-tail:])
}
