// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "ticket-responder/internal/common/errors"
)

// Load reads configs/config.yaml (plus config.<APP_ENVIRONMENT>.yaml) and the environment.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // ignore error if not found

	return build(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Zero is a legal threshold, so this default cannot live in applyDefaults.
	v.SetDefault("pipeline.threshold", 0.5)
	v.SetDefault("pipeline.keywords", []string{})
	v.SetDefault("pipeline.jql", "")
	v.SetDefault("pipeline.last_run_utc", "")
	v.SetDefault("pipeline.dry_run", false)
	v.SetDefault("jira.server", "")
	v.SetDefault("jira.email", "")
	v.SetDefault("jira.api_token", "")
	v.SetDefault("azure.endpoint", "")
	v.SetDefault("azure.api_key", "")
	v.SetDefault("pinecone.api_key", "")
	v.SetDefault("compose.snippet_chars", 160)
	return v
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// Direct override if config values are still empty after expansion
func overrideEmptyConfig(cfg *Config) {
	overrides := []struct {
		target *string
		env    string
	}{
		{&cfg.Jira.Server, "JIRA_SERVER"},
		{&cfg.Jira.Email, "JIRA_EMAIL"},
		{&cfg.Jira.APIToken, "JIRA_API_TOKEN"},
		{&cfg.Azure.Endpoint, "AZURE_OPENAI_ENDPOINT"},
		{&cfg.Azure.APIKey, "AZURE_OPENAI_API_KEY"},
		{&cfg.Azure.Generation.Deployment, "AZURE_OPENAI_DEPLOYMENT"},
		{&cfg.Azure.Triage.Deployment, "AZURE_OPENAI_TRIAGE_DEPLOYMENT"},
		{&cfg.Azure.Embedding.Deployment, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT"},
		{&cfg.Pinecone.APIKey, "PINECONE_API_KEY"},
		{&cfg.Pinecone.IndexName, "PINECONE_INDEX_NAME"},
		{&cfg.VectorIndex.Namespace, "PINECONE_NAMESPACE"},
		{&cfg.Pipeline.LastRunUTC, "PIPELINE_LAST_RUN_UTC"},
		{&cfg.Pipeline.LastRunUTC, "PIPELINE_PREVIOUS_LAST_RUN_UTC"},
		{&cfg.Database.Postgres.User, "DB_USER"},
		{&cfg.Database.Postgres.Password, "DB_PASSWORD"},
	}

	for _, o := range overrides {
		if *o.target != "" {
			continue
		}
		if val := os.Getenv(o.env); val != "" {
			*o.target = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ticket-responder"
	}

	// Jira defaults
	cfg.Jira.Server = strings.TrimRight(cfg.Jira.Server, "/")
	if cfg.Jira.UserAgent == "" {
		cfg.Jira.UserAgent = "ticket-responder/1.0"
	}
	if cfg.Jira.PostFormat == "" {
		cfg.Jira.PostFormat = "adf"
	}
	if cfg.Jira.PageSize == 0 {
		cfg.Jira.PageSize = 50
	}
	if cfg.Jira.MaxRetries == 0 {
		cfg.Jira.MaxRetries = 2
	}

	// Model defaults
	if cfg.Azure.Provider == "" {
		cfg.Azure.Provider = "azure"
	}
	if endpoint, version := splitAPIVersion(cfg.Azure.Endpoint); version != "" {
		cfg.Azure.Endpoint = endpoint
		if cfg.Azure.APIVersion == "" {
			cfg.Azure.APIVersion = version
		}
	}
	if cfg.Azure.APIVersion == "" {
		cfg.Azure.APIVersion = "2024-10-21"
	}
	if cfg.Azure.Generation.MaxTokens == 0 {
		cfg.Azure.Generation.MaxTokens = 16384
	}
	if cfg.Azure.Triage.Deployment == "" {
		cfg.Azure.Triage.Deployment = cfg.Azure.Generation.Deployment
	}
	if cfg.Azure.Triage.MaxTokens == 0 {
		cfg.Azure.Triage.MaxTokens = 500
	}
	if cfg.Azure.Triage.Temperature == 0 {
		cfg.Azure.Triage.Temperature = 0.1
	}
	if cfg.Azure.Embedding.Dimension == 0 {
		cfg.Azure.Embedding.Dimension = 1536
	}

	// Retrieval defaults
	if cfg.VectorIndex.Provider == "" {
		cfg.VectorIndex.Provider = "pinecone"
	}
	if cfg.VectorIndex.TopK == 0 {
		cfg.VectorIndex.TopK = 10
	}
	if cfg.VectorIndex.MaxQueryChars == 0 {
		cfg.VectorIndex.MaxQueryChars = 8000
	}
	if cfg.VectorIndex.VectorField == "" {
		cfg.VectorIndex.VectorField = "embedding"
	}
	if cfg.Pinecone.ControllerURL == "" {
		cfg.Pinecone.ControllerURL = "https://api.pinecone.io"
	}
	if cfg.Pinecone.APIVersion == "" {
		cfg.Pinecone.APIVersion = "2024-07"
	}

	// Pipeline defaults
	if cfg.Pipeline.MaxPromptChars == 0 {
		cfg.Pipeline.MaxPromptChars = 120000
	}
	if cfg.Pipeline.MaxConcurrentTickets == 0 {
		cfg.Pipeline.MaxConcurrentTickets = 1
	}
	if cfg.Pipeline.SystemPromptPath == "" {
		cfg.Pipeline.SystemPromptPath = "prompts/system.md"
	}
	t := &cfg.Pipeline.Timeouts
	if t.Search == 0 {
		t.Search = 30000
	}
	if t.Scoring == 0 {
		t.Scoring = 30000
	}
	if t.Embedding == 0 {
		t.Embedding = 15000
	}
	if t.VectorQuery == 0 {
		t.VectorQuery = 15000
	}
	if t.Generation == 0 {
		t.Generation = 180000
	}
	if t.Publish == 0 {
		t.Publish = 30000
	}

	if cfg.Compose.ReferencesTitle == "" {
		cfg.Compose.ReferencesTitle = "References"
	}

	// Cache defaults
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * 60 * 60 * 1000
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "ticket-responder"
	}

	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 1
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30 * 60 * 1000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL != "" {
		cfg.Database.Elasticsearch.Addresses = []string{cfg.Database.Elasticsearch.URL}
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// splitAPIVersion pulls ?api-version= off an Azure endpoint URL.
func splitAPIVersion(endpoint string) (string, string) {
	if !strings.Contains(endpoint, "api-version=") {
		return endpoint, ""
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint, ""
	}
	version := u.Query().Get("api-version")
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), version
}

// validateConfig rejects configurations that would make every ticket fail.
func validateConfig(cfg *Config) error {
	var problems []string

	keywords := 0
	for _, k := range cfg.Pipeline.Keywords {
		if strings.TrimSpace(k) != "" {
			keywords++
		}
	}
	if keywords == 0 {
		problems = append(problems, "pipeline.keywords must contain at least one keyword")
	}
	if strings.TrimSpace(cfg.Pipeline.JQL) == "" {
		problems = append(problems, "pipeline.jql is required")
	}
	if strings.Count(cfg.Pipeline.JQL, "{") != strings.Count(cfg.Pipeline.JQL, "}") {
		problems = append(problems, "pipeline.jql has unbalanced placeholder braces")
	}
	if cfg.Pipeline.Threshold < 0 || cfg.Pipeline.Threshold > 1 {
		problems = append(problems, "pipeline.threshold must be within [0, 1]")
	}
	if cfg.Pipeline.MaxConcurrentTickets < 1 {
		problems = append(problems, "pipeline.max_concurrent_tickets must be >= 1")
	}
	if cfg.VectorIndex.TopK < 1 {
		problems = append(problems, "vector_index.top_k must be >= 1")
	}

	if cfg.Jira.Server == "" {
		problems = append(problems, "jira.server is required")
	}
	if cfg.Jira.PostFormat != "adf" && cfg.Jira.PostFormat != "plain" {
		problems = append(problems, "jira.post_format must be adf or plain")
	}

	if cfg.Azure.Provider != "azure" && cfg.Azure.Provider != "openai" {
		problems = append(problems, "azure.provider must be azure or openai")
	}
	if cfg.Azure.Generation.Deployment == "" {
		problems = append(problems, "azure.generation.deployment is required")
	}
	if cfg.Azure.Embedding.Deployment == "" {
		problems = append(problems, "azure.embedding.deployment is required")
	}

	switch cfg.VectorIndex.Provider {
	case "pinecone":
		if cfg.Pinecone.IndexName == "" && cfg.Pinecone.Host == "" {
			problems = append(problems, "pinecone.index_name or pinecone.host is required")
		}
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			problems = append(problems, "database.elasticsearch.addresses or url is required")
		}
		if cfg.VectorIndex.Index == "" {
			problems = append(problems, "vector_index.index is required for elasticsearch")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown vector_index.provider %q", cfg.VectorIndex.Provider))
	}

	if cfg.Notifications.SNS.Enabled && cfg.Notifications.SNS.TopicARN == "" {
		problems = append(problems, "notifications.sns.topic_arn is required when sns is enabled")
	}
	if cfg.Notifications.SES.Enabled && (cfg.Notifications.SES.FromEmail == "" || len(cfg.Notifications.SES.ToEmails) == 0) {
		problems = append(problems, "notifications.ses.from_email and to_emails are required when ses is enabled")
	}

	if len(problems) > 0 {
		return apperrors.NewConfigurationInvalidError(strings.Join(problems, "; "))
	}
	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
