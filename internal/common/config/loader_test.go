// internal/common/config/loader_test.go
package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticket-responder/internal/common/errors"
)

// ==========================
// Test Helper Functions
// ==========================

const validYAML = `
jira:
  server: https://example.atlassian.net/
  email: bot@example.com
  api_token: secret
azure:
  endpoint: https://example.openai.azure.com/openai/deployments/gpt/chat/completions?api-version=2025-01-01-preview
  api_key: key
  generation:
    deployment: gpt-4o
  embedding:
    deployment: text-embedding-3-small
pinecone:
  api_key: pc-key
  index_name: docs
vector_index:
  namespace: product-docs
pipeline:
  keywords: ["online help", "doc & test"]
  jql: 'project = DOC AND {period}'
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"JIRA_SERVER", "JIRA_EMAIL", "JIRA_API_TOKEN",
		"AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_API_KEY", "AZURE_OPENAI_DEPLOYMENT",
		"AZURE_OPENAI_TRIAGE_DEPLOYMENT", "AZURE_OPENAI_EMBEDDING_DEPLOYMENT",
		"PINECONE_API_KEY", "PINECONE_INDEX_NAME", "PINECONE_NAMESPACE",
		"PIPELINE_LAST_RUN_UTC", "PIPELINE_PREVIOUS_LAST_RUN_UTC", "PIPELINE_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
}

// ==========================
// Loader Tests
// ==========================

func TestLoadFromFile_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", cfg.Jira.Server)
	assert.Equal(t, "adf", cfg.Jira.PostFormat)
	assert.Equal(t, 0.5, cfg.Pipeline.Threshold)
	assert.Equal(t, 10, cfg.VectorIndex.TopK)
	assert.Equal(t, 1, cfg.Pipeline.MaxConcurrentTickets)
	assert.Equal(t, "pinecone", cfg.VectorIndex.Provider)
	assert.Equal(t, "gpt-4o", cfg.Azure.Triage.Deployment)
	assert.Equal(t, 500, cfg.Azure.Triage.MaxTokens)
	assert.Equal(t, 1536, cfg.Azure.Embedding.Dimension)
	assert.Equal(t, 160, cfg.Compose.SnippetChars)
	assert.Equal(t, "References", cfg.Compose.ReferencesTitle)
}

func TestLoadFromFile_SplitsAPIVersionFromEndpoint(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.Azure.Endpoint)
	assert.Equal(t, "2025-01-01-preview", cfg.Azure.APIVersion)
}

func TestLoadFromFile_ExplicitZeroThreshold(t *testing.T) {
	clearEnv(t)
	cfg, err := LoadFromFile(writeConfig(t, validYAML+"  threshold: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Pipeline.Threshold)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PIPELINE_LAST_RUN_UTC", "2026-03-01T08:30:00Z")
	t.Setenv("JIRA_API_TOKEN", "from-env")

	body := `
jira:
  server: https://example.atlassian.net
azure:
  generation:
    deployment: gpt-4o
  embedding:
    deployment: emb
pinecone:
  index_name: docs
pipeline:
  keywords: ["fix notes"]
  jql: 'project = DOC'
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T08:30:00Z", cfg.Pipeline.LastRunUTC)
	assert.Equal(t, "from-env", cfg.Jira.APIToken)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{
			name: "missing keywords",
			body: `
jira: {server: https://x}
azure: {generation: {deployment: g}, embedding: {deployment: e}}
pinecone: {index_name: docs}
pipeline: {jql: "project = X"}
`,
			message: "pipeline.keywords",
		},
		{
			name: "missing jql",
			body: `
jira: {server: https://x}
azure: {generation: {deployment: g}, embedding: {deployment: e}}
pinecone: {index_name: docs}
pipeline: {keywords: ["a"]}
`,
			message: "pipeline.jql is required",
		},
		{
			name: "threshold out of range",
			body: `
jira: {server: https://x}
azure: {generation: {deployment: g}, embedding: {deployment: e}}
pinecone: {index_name: docs}
pipeline: {keywords: ["a"], jql: "project = X", threshold: 1.5}
`,
			message: "pipeline.threshold",
		},
		{
			name: "unknown vector provider",
			body: `
jira: {server: https://x}
azure: {generation: {deployment: g}, embedding: {deployment: e}}
vector_index: {provider: faiss}
pipeline: {keywords: ["a"], jql: "project = X"}
`,
			message: "unknown vector_index.provider",
		},
		{
			name: "elasticsearch without index",
			body: `
jira: {server: https://x}
azure: {generation: {deployment: g}, embedding: {deployment: e}}
vector_index: {provider: elasticsearch}
database: {elasticsearch: {addresses: ["http://localhost:9200"]}}
pipeline: {keywords: ["a"], jql: "project = X"}
`,
			message: "vector_index.index is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")

			var stdErr *apperrors.StandardError
			require.True(t, errors.As(err, &stdErr))
			assert.Equal(t, apperrors.ErrCodeConfigurationInvalid, stdErr.Code)
			assert.Contains(t, stdErr.Details, tt.message)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, "1.5s", GetDuration(1500).String())
}
