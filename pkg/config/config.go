package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedding struct {
		Provider  string `yaml:"provider"`
		Model     string `yaml:"model"`
		Dimension int    `yaml:"dimension"`
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"embedding"`

	Generation struct {
		Provider    string  `yaml:"provider"`
		Model       string  `yaml:"model"`
		BaseURL     string  `yaml:"base_url"`
		APIKey      string  `yaml:"api_key"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"generation"`

	Index struct {
		Backend   string `yaml:"backend"` // "chromem" or "pgvector"
		Path      string `yaml:"path"`    // chromem storage directory
		URL       string `yaml:"url"`     // pgvector connection string
		TableName string `yaml:"table_name"`
		BatchSize int    `yaml:"batch_size"`
	} `yaml:"index"`

	Database struct {
		URL       string `yaml:"url"` // empty means in-memory paper store
		TableName string `yaml:"table_name"`
	} `yaml:"database"`

	Objects struct {
		Root string `yaml:"root"`
	} `yaml:"objects"`

	Processor struct {
		ChunkSize        int  `yaml:"chunk_size"`
		ChunkOverlap     int  `yaml:"chunk_overlap"`
		RespectSentences bool `yaml:"respect_sentences"`
		BoundaryBack     int  `yaml:"boundary_back"`
		BoundaryForward  int  `yaml:"boundary_forward"`
		BoundarySlack    int  `yaml:"boundary_slack"`
	} `yaml:"processor"`

	Enrichment struct {
		Enabled        bool    `yaml:"enabled"`
		APIKey         string  `yaml:"api_key"`
		RequestsPerSec float64 `yaml:"requests_per_sec"`
	} `yaml:"enrichment"`

	Query struct {
		TopK            int `yaml:"top_k"`
		MaxContextChars int `yaml:"max_context_chars"`
	} `yaml:"query"`

	Queue struct {
		BufferSize    int `yaml:"buffer_size"`
		MaxDeliveries int `yaml:"max_deliveries"`
	} `yaml:"queue"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/scholar/config.yaml"),
			"/etc/scholar/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := &Config{}
	// Defaults go in first so the file only needs to name what it changes;
	// explicit false/zero values in the file still win.
	applyDefaults(config)

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %v", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %v", err)
		}
	}

	mergeWithEnv(config)

	return config, nil
}

func applyDefaults(config *Config) {
	config.Embedding.Provider = "ollama"
	config.Embedding.Model = "nomic-embed-text:latest"
	config.Embedding.Dimension = 768
	config.Embedding.BaseURL = "http://localhost:11434"
	config.Embedding.BatchSize = 32

	config.Generation.Provider = "ollama"
	config.Generation.Model = "mistral"
	config.Generation.BaseURL = "http://localhost:11434"
	config.Generation.MaxTokens = 1000
	config.Generation.Temperature = 0.7

	config.Index.Backend = "chromem"
	config.Index.Path = filepath.Join(os.Getenv("HOME"), ".local/share/scholar/index")
	config.Index.TableName = "chunks"
	config.Index.BatchSize = 100

	config.Database.TableName = "papers"

	config.Objects.Root = filepath.Join(os.Getenv("HOME"), ".local/share/scholar/objects")

	config.Processor.ChunkSize = 1000
	config.Processor.ChunkOverlap = 200
	config.Processor.RespectSentences = true
	config.Processor.BoundaryBack = 200
	config.Processor.BoundaryForward = 100
	config.Processor.BoundarySlack = 50

	config.Enrichment.Enabled = true
	config.Enrichment.RequestsPerSec = 1

	config.Query.TopK = 5
	config.Query.MaxContextChars = 8000

	config.Queue.BufferSize = 128
	config.Queue.MaxDeliveries = 3

	config.Server.Addr = ":8080"
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if config.Embedding.Provider == "ollama" {
			config.Embedding.BaseURL = baseURL
		}
		if config.Generation.Provider == "ollama" {
			config.Generation.BaseURL = baseURL
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = key
		}
		if config.Generation.APIKey == "" {
			config.Generation.APIKey = key
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if indexURL := os.Getenv("INDEX_DATABASE_URL"); indexURL != "" {
		config.Index.URL = indexURL
	}
	if key := os.Getenv("SEMANTIC_SCHOLAR_API_KEY"); key != "" {
		config.Enrichment.APIKey = key
	}
}
