// Package config loads runtime settings from defaults, an optional
// vakeel.yaml, and VAKEEL_* environment variables (highest priority).
// API keys follow provider conventions (ANTHROPIC_API_KEY, OPENAI_API_KEY)
// rather than the VAKEEL prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vakeel-labs/vakeel/memory"
)

// Config is the full runtime configuration.
type Config struct {
	// Paths.
	ProcessedDir string `mapstructure:"processed_dir"`
	NotesDir     string `mapstructure:"notes_dir"`
	VectorDir    string `mapstructure:"vector_dir"`
	RegistryPath string `mapstructure:"registry_path"`

	// Collections.
	KBCollection     string `mapstructure:"kb_collection"`
	MemoryCollection string `mapstructure:"memory_collection"`

	// Chunking.
	ChunkMaxChars int `mapstructure:"chunk_max_chars"`
	ChunkOverlap  int `mapstructure:"chunk_overlap"`

	// Retrieval and context assembly.
	KBTop       int `mapstructure:"kb_top"`
	MemoryTop   int `mapstructure:"memory_top"`
	BudgetChars int `mapstructure:"budget_chars"`

	// Embedding.
	EmbedProvider string `mapstructure:"embed_provider"` // "openai", "onnx", or "mock"
	EmbedModel    string `mapstructure:"embed_model"`
	EmbedDims     int    `mapstructure:"embed_dims"`
	OnnxModelPath string `mapstructure:"onnx_model_path"`
	OnnxTokenizer string `mapstructure:"onnx_tokenizer_path"`

	// Generation.
	GenProvider  string `mapstructure:"gen_provider"`
	GenModel     string `mapstructure:"gen_model"`
	GenMaxTokens int    `mapstructure:"gen_max_tokens"`

	// Memory scoring.
	Memory MemoryConfig `mapstructure:"memory"`

	// API keys, from environment only.
	AnthropicAPIKey string `mapstructure:"-"`
	OpenAIAPIKey    string `mapstructure:"-"`
}

// MemoryConfig mirrors the memory scoring knobs in file/env form.
type MemoryConfig struct {
	SimWeight     float64 `mapstructure:"sim_weight"`
	RecencyWeight float64 `mapstructure:"recency_weight"`
	RoleWeight    float64 `mapstructure:"role_weight"`
	SessionWeight float64 `mapstructure:"session_weight"`
	HalfLifeHours float64 `mapstructure:"half_life_hours"`
	Candidates    int     `mapstructure:"candidates"`
}

// Load builds the configuration. A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("vakeel")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VAKEEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("processed_dir", "data/processed")
	v.SetDefault("notes_dir", "data/manual_notes")
	v.SetDefault("vector_dir", "vectorstore")
	v.SetDefault("registry_path", "state/kb_chunks.json")

	v.SetDefault("kb_collection", "kb_india_law")
	v.SetDefault("memory_collection", "memory_chat")

	v.SetDefault("chunk_max_chars", 1800)
	v.SetDefault("chunk_overlap", 150)

	v.SetDefault("kb_top", 5)
	v.SetDefault("memory_top", 4)
	v.SetDefault("budget_chars", 6000)

	v.SetDefault("embed_provider", "openai")
	v.SetDefault("embed_model", "text-embedding-3-small")
	v.SetDefault("embed_dims", 1536)
	v.SetDefault("onnx_model_path", "models/all-MiniLM-L6-v2/model.onnx")
	v.SetDefault("onnx_tokenizer_path", "models/all-MiniLM-L6-v2/tokenizer.json")

	v.SetDefault("gen_provider", "anthropic")
	v.SetDefault("gen_model", "")
	v.SetDefault("gen_max_tokens", 1024)

	v.SetDefault("memory.sim_weight", 0.55)
	v.SetDefault("memory.recency_weight", 0.20)
	v.SetDefault("memory.role_weight", 0.15)
	v.SetDefault("memory.session_weight", 0.10)
	v.SetDefault("memory.half_life_hours", 72)
	v.SetDefault("memory.candidates", 12)
}

// Validate rejects configurations that would misbehave at runtime rather
// than letting them surface as confusing downstream errors.
func (c *Config) Validate() error {
	if c.ChunkMaxChars <= 0 {
		return fmt.Errorf("chunk_max_chars must be positive, got %d", c.ChunkMaxChars)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkMaxChars {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_max_chars), got %d", c.ChunkOverlap)
	}
	if c.BudgetChars <= 0 {
		return fmt.Errorf("budget_chars must be positive, got %d", c.BudgetChars)
	}
	if c.KBTop <= 0 || c.MemoryTop <= 0 {
		return fmt.Errorf("kb_top and memory_top must be positive, got %d and %d", c.KBTop, c.MemoryTop)
	}
	if c.EmbedDims <= 0 {
		return fmt.Errorf("embed_dims must be positive, got %d", c.EmbedDims)
	}
	for name, w := range map[string]float64{
		"memory.sim_weight":     c.Memory.SimWeight,
		"memory.recency_weight": c.Memory.RecencyWeight,
		"memory.role_weight":    c.Memory.RoleWeight,
		"memory.session_weight": c.Memory.SessionWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", name, w)
		}
	}
	if c.Memory.Candidates <= 0 {
		return fmt.Errorf("memory.candidates must be positive, got %d", c.Memory.Candidates)
	}
	return nil
}

// MemoryScoring converts the file/env form into the memory store's config,
// keeping the store's defaults for the role and session tables.
func (c *Config) MemoryScoring() *memory.Config {
	mc := memory.DefaultConfig()
	mc.SimWeight = c.Memory.SimWeight
	mc.RecencyWeight = c.Memory.RecencyWeight
	mc.RoleWeight = c.Memory.RoleWeight
	mc.SessionWeight = c.Memory.SessionWeight
	mc.RecencyHalfLife = time.Duration(c.Memory.HalfLifeHours * float64(time.Hour))
	mc.Candidates = c.Memory.Candidates
	return mc
}
