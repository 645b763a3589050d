// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct. It is built once at start-up
// and passed by pointer to every component; nothing mutates it afterwards.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Jira          JiraConfig         `mapstructure:"jira"`
	Azure         AzureConfig        `mapstructure:"azure"`
	VectorIndex   VectorIndexConfig  `mapstructure:"vector_index"`
	Pinecone      PineconeConfig     `mapstructure:"pinecone"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Compose       ComposeConfig      `mapstructure:"compose"`
	Audit         AuditConfig        `mapstructure:"audit"`
	Cache         CacheConfig        `mapstructure:"cache"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Camunda       CamundaConfig      `mapstructure:"camunda"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether a postgres host is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Ticket system ---

// JiraConfig holds the ticket source and publisher settings.
type JiraConfig struct {
	Server     string `mapstructure:"server"`
	Email      string `mapstructure:"email"`
	APIToken   string `mapstructure:"api_token"`
	UserAgent  string `mapstructure:"user_agent"`
	PostFormat string `mapstructure:"post_format"` // adf | plain
	PageSize   int    `mapstructure:"page_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// --- Model endpoints ---

// AzureConfig holds the generation, triage and embedding deployments.
type AzureConfig struct {
	Provider   string          `mapstructure:"provider"` // azure | openai
	Endpoint   string          `mapstructure:"endpoint"`
	APIKey     string          `mapstructure:"api_key"`
	APIVersion string          `mapstructure:"api_version"`
	Generation ModelConfig     `mapstructure:"generation"`
	Triage     ModelConfig     `mapstructure:"triage"`
	Embedding  EmbeddingConfig `mapstructure:"embedding"`
}

type ModelConfig struct {
	Endpoint    string  `mapstructure:"endpoint"` // overrides azure.endpoint
	Deployment  string  `mapstructure:"deployment"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type EmbeddingConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Deployment string `mapstructure:"deployment"`
	Dimension  int    `mapstructure:"dimension"`
}

// --- Retrieval ---

// VectorIndexConfig selects and scopes the vector index.
type VectorIndexConfig struct {
	Provider      string `mapstructure:"provider"` // pinecone | elasticsearch
	Namespace     string `mapstructure:"namespace"`
	TopK          int    `mapstructure:"top_k"`
	MaxQueryChars int    `mapstructure:"max_query_chars"`
	Index         string `mapstructure:"index"`        // elasticsearch index name
	VectorField   string `mapstructure:"vector_field"` // elasticsearch dense_vector field
}

type PineconeConfig struct {
	APIKey        string `mapstructure:"api_key"`
	IndexName     string `mapstructure:"index_name"`
	Host          string `mapstructure:"host"`
	ControllerURL string `mapstructure:"controller_url"`
	APIVersion    string `mapstructure:"api_version"`
}

// --- Pipeline ---

// PipelineConfig holds the per-run policy shared read-only by every ticket.
type PipelineConfig struct {
	Keywords              []string       `mapstructure:"keywords"`
	Threshold             float64        `mapstructure:"threshold"`
	JQL                   string         `mapstructure:"jql"`
	LastRunUTC            string         `mapstructure:"last_run_utc"`
	MaxPromptChars        int            `mapstructure:"max_prompt_chars"`
	MaxConcurrentTickets  int            `mapstructure:"max_concurrent_tickets"`
	SystemPromptPath      string         `mapstructure:"system_prompt_path"`
	TriagePromptPath      string         `mapstructure:"triage_prompt_path"`
	DryRun                bool           `mapstructure:"dry_run"`
	ReplyToHeadingComment bool           `mapstructure:"reply_to_heading_comment"`
	Timeouts              TimeoutsConfig `mapstructure:"timeouts"`
}

// TimeoutsConfig holds per-call timeouts in milliseconds.
type TimeoutsConfig struct {
	Search      int `mapstructure:"search"`
	Scoring     int `mapstructure:"scoring"`
	Embedding   int `mapstructure:"embedding"`
	VectorQuery int `mapstructure:"vector_query"`
	Generation  int `mapstructure:"generation"`
	Publish     int `mapstructure:"publish"`
}

// ComposeConfig controls reply rendering.
type ComposeConfig struct {
	SnippetChars    int    `mapstructure:"snippet_chars"`
	ReferencesTitle string `mapstructure:"references_title"`
}

// AuditConfig controls where per-ticket audit records go.
type AuditConfig struct {
	Dir      string `mapstructure:"dir"`
	Postgres bool   `mapstructure:"postgres"`
}

// CacheConfig controls the redis-backed caches.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	TTL     int    `mapstructure:"ttl"` // milliseconds
	Prefix  string `mapstructure:"prefix"`
}

// NotificationConfig holds run-summary notification settings.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled   bool     `mapstructure:"enabled"`
		FromEmail string   `mapstructure:"from_email"`
		ToEmails  []string `mapstructure:"to_emails"`
	} `mapstructure:"ses"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the prometheus endpoint settings.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}
