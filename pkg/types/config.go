package types

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout. Zero means no client timeout;
	// downloads of large files usually want that and rely on context cancellation.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "esgf-harvest/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.UserAgent, validation.Required),
	)
}

// MaxIndexRetries caps IndexConfig.MaxRetries so retry backoff stays bounded.
const MaxIndexRetries = 20

// IndexConfig holds settings for querying catalog-index sources.
type IndexConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// Endpoints lists index sources as "solr:<host>" or "globus:<index id or alias>".
	Endpoints []string `json:"endpoints" yaml:"endpoints" mapstructure:"endpoints"`

	// Distrib asks Solr nodes to run a distributed search across federated nodes.
	Distrib bool `json:"distrib" yaml:"distrib" mapstructure:"distrib"`

	// Limit caps the number of documents requested per query.
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit"`

	// MaxRetries bounds retries on HTTP 429 responses (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// Validate validates the index configuration.
func (c *IndexConfig) Validate() error {
	if err := c.HTTPConfig.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoints, validation.Required),
		validation.Field(&c.Limit, validation.Min(0)),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(MaxIndexRetries)),
	)
}

// RetrievalConfig holds settings for the retrieval stage.
type RetrievalConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// CacheDir is the writable cache root that receives downloaded files.
	CacheDir string `json:"cache_dir" yaml:"cache_dir" mapstructure:"cache_dir"`

	// DataRoot is an optional read-only replica of the archive. Files found
	// there are used in place and never verified.
	DataRoot string `json:"data_root,omitempty" yaml:"data_root,omitempty" mapstructure:"data_root"`

	// Workers bounds the number of concurrent downloads (default 4).
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// Protocol selects which mirror list of a file to use (default "HTTPServer").
	Protocol string `json:"protocol" yaml:"protocol" mapstructure:"protocol"`
}

// Validate validates the retrieval configuration.
func (c *RetrievalConfig) Validate() error {
	if err := c.HTTPConfig.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.Workers, validation.Required, validation.Min(1)),
		validation.Field(&c.Protocol, validation.Required),
	)
}

// CatalogConfig holds settings for the SQLite ledger.
type CatalogConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	LogLevel  string          `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat string          `json:"log_format" yaml:"log_format" mapstructure:"log_format"`
	Index     IndexConfig     `json:"index" yaml:"index" mapstructure:"index"`
	Retrieval RetrievalConfig `json:"retrieval" yaml:"retrieval" mapstructure:"retrieval"`
	Catalog   CatalogConfig   `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
}

// Validate validates every stage configuration.
func (c *PipelineConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogLevel, validation.In("trace", "debug", "info", "warn", "error")),
		validation.Field(&c.LogFormat, validation.In("json", "console")),
	); err != nil {
		return err
	}
	if err := c.Index.Validate(); err != nil {
		return err
	}
	if err := c.Retrieval.Validate(); err != nil {
		return err
	}
	return c.Catalog.Validate()
}

// DefaultPipelineConfig returns a PipelineConfig with sensible defaults.
func DefaultPipelineConfig() PipelineConfig {
	http := HTTPConfig{
		Timeout:   60 * time.Second,
		UserAgent: "esgf-harvest/0.1",
	}
	return PipelineConfig{
		LogLevel:  "info",
		LogFormat: "console",
		Index: IndexConfig{
			HTTPConfig: http,
			Endpoints:  []string{"solr:esgf-node.llnl.gov"},
			Distrib:    true,
			Limit:      1000,
			MaxRetries: 5,
		},
		Retrieval: RetrievalConfig{
			HTTPConfig: HTTPConfig{UserAgent: http.UserAgent},
			CacheDir:   "esgf-cache",
			Workers:    4,
			Protocol:   ProtocolHTTP,
		},
		Catalog: CatalogConfig{
			Path: "esgf-cache/catalog.db",
		},
	}
}
