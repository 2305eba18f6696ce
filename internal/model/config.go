package model

import (
	"fmt"
	"time"
)

// Default thresholds. MatchThreshold answers "is this the same clause at all",
// IdenticalThreshold answers "is this clause unchanged verbatim".
const (
	DefaultMatchThreshold     = 0.7
	DefaultIdenticalThreshold = 0.99
)

// Config is the complete lexicompare configuration
type Config struct {
	Matching     MatchingConfig     `yaml:"matching" mapstructure:"matching"`
	Taxonomy     string             `yaml:"taxonomy" mapstructure:"taxonomy"`
	Verdict      VerdictConfig      `yaml:"verdict" mapstructure:"verdict"`
	Extraction   ExtractionConfig   `yaml:"extraction" mapstructure:"extraction"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// MatchingConfig holds the similarity thresholds
type MatchingConfig struct {
	MatchThreshold     float64 `yaml:"match_threshold" mapstructure:"match_threshold"`
	IdenticalThreshold float64 `yaml:"identical_threshold" mapstructure:"identical_threshold"`
}

// VerdictConfig tunes the favorability heuristic
type VerdictConfig struct {
	NoiseThreshold int `yaml:"noise_threshold" mapstructure:"noise_threshold"` // Margins up to this are "balanced"
}

// ExtractionConfig selects how clauses are pulled out of documents
type ExtractionConfig struct {
	Mode       string `yaml:"mode" mapstructure:"mode"`               // heuristic or llm
	MinClauses int    `yaml:"min_clauses" mapstructure:"min_clauses"` // At least one document must reach this
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"` // LLM attempts per document

	// Instructions are appended to the LLM extraction prompt, e.g. "Focus on liability clauses"
	Instructions string `yaml:"instructions" mapstructure:"instructions"`
}

// LLMConfig configures the LLM provider used for extraction and summaries
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	Summary   bool   `yaml:"summary" mapstructure:"summary"` // Generate an executive summary
}

// HTTPConfig configures document fetching for URL sources
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the extraction cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// ConcurrencyConfig configures batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitingConfig limits LLM requests per provider
type RateLimitingConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// OutputConfig configures rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LogConfig configures structured logging
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console or json
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Matching: MatchingConfig{
			MatchThreshold:     DefaultMatchThreshold,
			IdenticalThreshold: DefaultIdenticalThreshold,
		},
		Taxonomy: "universal",
		Verdict: VerdictConfig{
			NoiseThreshold: 1,
		},
		Extraction: ExtractionConfig{
			Mode:       "heuristic",
			MinClauses: 2,
			MaxRetries: 3,
		},
		LLM: LLMConfig{
			Timeout:   60,
			MaxTokens: 4096,
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     "lexicompare/0.1 (+https://github.com/ppiankov/lexicompare)",
			MaxBodyBytes:  10 << 20,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".lexicompare-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         2,
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the settings the comparison engine depends on
func (c *Config) Validate() error {
	if err := validThreshold("matching.match_threshold", c.Matching.MatchThreshold); err != nil {
		return err
	}
	if err := validThreshold("matching.identical_threshold", c.Matching.IdenticalThreshold); err != nil {
		return err
	}
	if c.Verdict.NoiseThreshold < 0 {
		return fmt.Errorf("verdict.noise_threshold must be >= 0, got %d", c.Verdict.NoiseThreshold)
	}
	switch c.Extraction.Mode {
	case "heuristic", "llm":
	default:
		return fmt.Errorf("extraction.mode must be heuristic or llm, got %q", c.Extraction.Mode)
	}
	if _, err := TaxonomyByName(c.Taxonomy); err != nil {
		return err
	}
	return nil
}

func validThreshold(name string, v float64) error {
	// NaN fails both comparisons
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}
