package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when the LLM credential is not present in the environment.
var ErrMissingAPIKey = errors.New("missing LLM API key")

const (
	VariantFast     = "fast"
	VariantAccurate = "accurate"
)

type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	EmbedLLM    LLMConfig         `yaml:"embed_llm"`
	RAG         RAGConfig         `yaml:"rag"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Server      ServerConfig      `yaml:"server"`
}

// LLMConfig describes a hosted model endpoint. For the chat model the
// credential is read from APIKeyEnv; for the embedder Key may be set inline.
type LLMConfig struct {
	Provider  string            `yaml:"provider"`
	BaseURL   string            `yaml:"base_url"`
	Model     string            `yaml:"model"`
	Key       string            `yaml:"key"`
	APIKeyEnv string            `yaml:"api_key_env"`
	Models    map[string]string `yaml:"models"`
	Default   string            `yaml:"default_variant"`
}

type RAGConfig struct {
	Chunker       string `yaml:"chunker"`
	ChunkSize     int    `yaml:"chunk_size"`
	ChunkOverlap  int    `yaml:"chunk_overlap"`
	TopK          int    `yaml:"top_k"`
	MaxChunks     int    `yaml:"max_chunks"`
	EncryptionKey string `yaml:"encryption_key"`
}

type VectorStoreConfig struct {
	Type       string `yaml:"type"`
	Collection string `yaml:"collection"`
	InMemory   bool   `yaml:"in_memory"`
	Compress   bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	VectorSize int    `yaml:"vector_size"`
	Debug      bool   `yaml:"debug"`
}

type StorageConfig struct {
	UploadsDir string `yaml:"uploads_dir"`
	IndexDir   string `yaml:"index_dir"`
	LogsDir    string `yaml:"logs_dir"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// keys absent from the file keep their defaults
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.RAG.ChunkOverlap = 20
	applyDefaults(cfg)
	return cfg
}

// APIKey loads .env (if any) and resolves the chat model credential.
func (c *Config) APIKey() (string, error) {
	_ = godotenv.Load()
	key := strings.TrimSpace(os.Getenv(c.LLM.APIKeyEnv))
	if key == "" {
		return "", fmt.Errorf("%w: set %s", ErrMissingAPIKey, c.LLM.APIKeyEnv)
	}
	return key, nil
}

// ModelFor maps a variant name (fast/accurate) to a model identifier.
// Unknown variants are treated as literal model identifiers.
func (c *Config) ModelFor(variant string) string {
	if m, ok := c.LLM.Models[variant]; ok && m != "" {
		return m
	}
	return variant
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "groq"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GROQ_API_KEY"
	}
	if cfg.LLM.Models == nil {
		cfg.LLM.Models = map[string]string{}
	}
	if cfg.LLM.Models[VariantFast] == "" {
		cfg.LLM.Models[VariantFast] = "llama3-8b-8192"
	}
	if cfg.LLM.Models[VariantAccurate] == "" {
		cfg.LLM.Models[VariantAccurate] = "llama3-70b-8192"
	}
	if cfg.LLM.Default == "" {
		cfg.LLM.Default = VariantFast
	}

	if cfg.EmbedLLM.Provider == "" {
		cfg.EmbedLLM.Provider = "ollama"
	}
	if cfg.EmbedLLM.BaseURL == "" && cfg.EmbedLLM.Provider == "ollama" {
		cfg.EmbedLLM.BaseURL = "http://localhost:11434"
	}
	if cfg.EmbedLLM.Model == "" {
		cfg.EmbedLLM.Model = "nomic-embed-text"
	}

	if cfg.RAG.Chunker == "" {
		cfg.RAG.Chunker = "window"
	}
	if cfg.RAG.ChunkSize <= 0 {
		cfg.RAG.ChunkSize = 300
	}
	// zero is a valid overlap
	if cfg.RAG.ChunkOverlap < 0 {
		cfg.RAG.ChunkOverlap = 20
	}
	if cfg.RAG.TopK <= 0 {
		cfg.RAG.TopK = 10
	}
	if cfg.RAG.MaxChunks <= 0 {
		cfg.RAG.MaxChunks = 5000
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "chromem"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "scheme_collection"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "pgdriver"
	}
	if cfg.Database.VectorSize <= 0 {
		cfg.Database.VectorSize = 768
	}

	if cfg.Storage.UploadsDir == "" {
		cfg.Storage.UploadsDir = "uploads"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "vector_store"
	}
	if cfg.Storage.LogsDir == "" {
		cfg.Storage.LogsDir = "logs"
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = 32 << 20
	}
}
