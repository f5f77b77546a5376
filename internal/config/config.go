package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Quiz      QuizConfig      `yaml:"quiz"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LLMConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	Mock      bool   `yaml:"mock"`
}

type EmbeddingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

type IndexConfig struct {
	Dir           string `yaml:"dir"`
	BatchSize     int    `yaml:"batch_size"`
	MaxChunkChars int    `yaml:"max_chunk_chars"`
}

type IngestConfig struct {
	UploadDir    string `yaml:"upload_dir"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type RetrievalConfig struct {
	TopK       int `yaml:"top_k"`
	MaxDocs    int `yaml:"max_docs"`
	NumQueries int `yaml:"num_queries"`
}

type QuizConfig struct {
	AttemptMultiplier int `yaml:"attempt_multiplier"`
	SampleClusters    int `yaml:"sample_clusters"`
}

// Load reads a YAML config file, fills defaults, and applies env overrides
// for secrets.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	}
	if os.Getenv("MOCK_GENERATOR") == "true" {
		cfg.LLM.Mock = true
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}

	cfg.fillDefaults()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080"},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
		},
		Embedding: EmbeddingConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "text-embedding-3-small",
		},
		Index: IndexConfig{
			Dir:           "./data/index",
			BatchSize:     500,
			MaxChunkChars: 1024,
		},
		Ingest: IngestConfig{
			UploadDir:    "./data/uploads",
			ChunkSize:    1000,
			ChunkOverlap: 250,
		},
		Retrieval: RetrievalConfig{
			TopK:       5,
			MaxDocs:    6,
			NumQueries: 2,
		},
		Quiz: QuizConfig{
			AttemptMultiplier: 6,
			SampleClusters:    5,
		},
	}
}

// fillDefaults restores zero-valued knobs after YAML overlay so a partial
// config file cannot zero out a limit.
func (c *Config) fillDefaults() {
	d := defaults()
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = d.Embedding.BaseURL
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = d.Embedding.Model
	}
	if c.Index.Dir == "" {
		c.Index.Dir = d.Index.Dir
	}
	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = d.Index.BatchSize
	}
	if c.Index.MaxChunkChars <= 0 {
		c.Index.MaxChunkChars = d.Index.MaxChunkChars
	}
	if c.Ingest.UploadDir == "" {
		c.Ingest.UploadDir = d.Ingest.UploadDir
	}
	if c.Ingest.ChunkSize <= 0 {
		c.Ingest.ChunkSize = d.Ingest.ChunkSize
	}
	if c.Ingest.ChunkOverlap <= 0 {
		c.Ingest.ChunkOverlap = d.Ingest.ChunkOverlap
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = d.Retrieval.TopK
	}
	if c.Retrieval.MaxDocs <= 0 {
		c.Retrieval.MaxDocs = d.Retrieval.MaxDocs
	}
	if c.Retrieval.NumQueries <= 0 {
		c.Retrieval.NumQueries = d.Retrieval.NumQueries
	}
	if c.Quiz.AttemptMultiplier <= 0 {
		c.Quiz.AttemptMultiplier = d.Quiz.AttemptMultiplier
	}
	if c.Quiz.SampleClusters <= 0 {
		c.Quiz.SampleClusters = d.Quiz.SampleClusters
	}
}
