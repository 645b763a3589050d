// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scoreSchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"score"},
	"properties": map[string]interface{}{
		"score":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		"rationale": map[string]interface{}{"type": "string"},
	},
}

func TestSchema_ValidateJSON(t *testing.T) {
	s, err := Compile(scoreSchema)
	require.NoError(t, err)

	tests := []struct {
		name  string
		raw   string
		valid bool
		field string
	}{
		{name: "valid", raw: `{"score":0.7,"rationale":"fix details"}`, valid: true},
		{name: "boundary zero", raw: `{"score":0}`, valid: true},
		{name: "missing score", raw: `{"rationale":"x"}`, valid: false, field: "(root)"},
		{name: "out of range", raw: `{"score":1.5}`, valid: false, field: "score"},
		{name: "wrong type", raw: `{"score":"high"}`, valid: false, field: "score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.ValidateJSON([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			if !tt.valid {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.field, res.Errors[0].Field)
				assert.NotEmpty(t, res.Error())
			}
		})
	}
}

func TestSchema_ValidateGoValue(t *testing.T) {
	s := MustCompile(scoreSchema)
	res, err := s.Validate(map[string]interface{}{"score": 0.5})
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestSchema_MalformedDocument(t *testing.T) {
	s := MustCompile(scoreSchema)
	_, err := s.ValidateJSON([]byte(`{"score":`))
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(map[string]interface{}{"type": 12})
	assert.Error(t, err)
}
