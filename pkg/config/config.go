package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type EmbeddingConfig struct {
	BaseURL    string  `yaml:"base_url"`
	Model      string  `yaml:"model"`
	BatchSize  int     `yaml:"batch_size"`
	RateLimit  float64 `yaml:"rate_limit"`
	MaxRetries int     `yaml:"max_retries"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // "ollama" or "openai"
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type StoreConfig struct {
	Backend   string `yaml:"backend"` // "chromem" or "pgvector"
	Path      string `yaml:"path"`    // chromem persistence directory
	URL       string `yaml:"url"`     // postgres connection string
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
}

type ChunkerConfig struct {
	MaxSize int `yaml:"max_size"`

	// Overlap is a pointer so an explicit `overlap: 0` survives defaulting.
	Overlap *int `yaml:"overlap"`
}

type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

type SummaryConfig struct {
	GroupSize int `yaml:"group_size"`
	MaxWords  int `yaml:"max_words"`
}

type ChallengeConfig struct {
	Questions int `yaml:"questions"`
}

type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Store      StoreConfig      `yaml:"store"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Summary    SummaryConfig    `yaml:"summary"`
	Challenge  ChallengeConfig  `yaml:"challenge"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/docsage/config.yaml"),
			"/etc/docsage/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}
	if config.Embedding.Model == "" {
		config.Embedding.Model = "nomic-embed-text"
	}
	if config.Embedding.BatchSize == 0 {
		config.Embedding.BatchSize = 32
	}
	if config.Embedding.RateLimit == 0 {
		config.Embedding.RateLimit = 4.0
	}
	if config.Embedding.MaxRetries == 0 {
		config.Embedding.MaxRetries = 3
	}

	if config.Generation.Provider == "" {
		config.Generation.Provider = "ollama"
	}
	if config.Generation.BaseURL == "" {
		config.Generation.BaseURL = "http://localhost:11434"
	}
	if config.Generation.Model == "" {
		config.Generation.Model = "mistral"
	}
	if config.Generation.MaxTokens == 0 {
		config.Generation.MaxTokens = 2000
	}
	if config.Generation.Temperature == 0 {
		config.Generation.Temperature = 0.2
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "chromem"
	}
	if config.Store.Path == "" {
		config.Store.Path = filepath.Join(os.Getenv("HOME"), ".local/share/docsage/store")
	}
	if config.Store.TableName == "" {
		config.Store.TableName = "chunks"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 768
	}

	if config.Chunker.MaxSize == 0 {
		config.Chunker.MaxSize = 1000
	}
	if config.Chunker.Overlap == nil {
		overlap := 200
		config.Chunker.Overlap = &overlap
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 5
	}
	if config.Retrieval.MinScore == 0 {
		config.Retrieval.MinScore = 0.3
	}

	if config.Summary.GroupSize == 0 {
		config.Summary.GroupSize = 8
	}
	if config.Summary.MaxWords == 0 {
		config.Summary.MaxWords = 150
	}

	if config.Challenge.Questions == 0 {
		config.Challenge.Questions = 3
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedding.BaseURL = baseURL
		config.Generation.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Store.URL = dbURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Generation.APIKey = apiKey
	}
	if storePath := os.Getenv("DOCSAGE_STORE_PATH"); storePath != "" {
		config.Store.Path = storePath
	}
}
