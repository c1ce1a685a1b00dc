// Package config loads runtime configuration from an optional YAML
// file plus environment variables. Env always wins for credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/easymo/omni-agent-go/tools"
)

// RunMode selects how the orchestrator talks to the model service.
type RunMode string

const (
	RunModeCompletion RunMode = "completion"
	RunModeAssistant  RunMode = "assistant"
)

// Config is the full runtime configuration.
type Config struct {
	// Credentials come from the environment only.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`

	RunMode     RunMode `yaml:"run_mode"`
	Model       string  `yaml:"model"`
	AssistantID string  `yaml:"assistant_id"`

	ListenAddr  string `yaml:"listen_addr"`
	ToolBaseURL string `yaml:"tool_base_url"`

	MemoryDBPath string `yaml:"memory_db_path"`
	AuditDBPath  string `yaml:"audit_db_path"`

	SummaryEvery  int           `yaml:"summary_every"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	RatePerMinute int           `yaml:"rate_per_minute"`
	RateBurst     int           `yaml:"rate_burst"`

	PollInterval time.Duration `yaml:"poll_interval"`
	RunTimeout   time.Duration `yaml:"run_timeout"`
	MaxRounds    int           `yaml:"max_rounds"`

	VerifiedTools []string `yaml:"verified_tools"`
}

// Load reads .env (when present), then the YAML file (when path is
// non-empty and the file exists), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("OMNI_RUN_MODE"); v != "" {
		cfg.RunMode = RunMode(v)
	}
	if v := os.Getenv("OMNI_ASSISTANT_ID"); v != "" {
		cfg.AssistantID = v
	}
	if v := os.Getenv("OMNI_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("OMNI_TOOL_BASE_URL"); v != "" {
		cfg.ToolBaseURL = v
	}
	if v := os.Getenv("OMNI_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("OMNI_SUMMARY_EVERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SummaryEvery = n
		}
	}

	return cfg, cfg.validate()
}

func defaults() *Config {
	return &Config{
		RunMode:       RunModeCompletion,
		ListenAddr:    ":8080",
		ToolBaseURL:   "http://localhost:9000",
		MemoryDBPath:  "omni-memory.db",
		AuditDBPath:   "omni-audit.db",
		SummaryEvery:  5,
		CacheTTL:      5 * time.Minute,
		RatePerMinute: 20,
		RateBurst:     5,
		PollInterval:  500 * time.Millisecond,
		RunTimeout:    60 * time.Second,
		MaxRounds:     10,
		VerifiedTools: tools.DefaultVerifiedTools(),
	}
}

func (c *Config) validate() error {
	switch c.RunMode {
	case RunModeCompletion, RunModeAssistant:
	default:
		return fmt.Errorf("config: unknown run mode %q", c.RunMode)
	}
	if c.RunMode == RunModeAssistant && c.AssistantID == "" {
		return fmt.Errorf("config: assistant mode needs an assistant id")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen addr required")
	}
	return nil
}
