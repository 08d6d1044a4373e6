package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	docanalysis "github.com/MegaGrindStone/go-doc-analysis"
	"github.com/MegaGrindStone/go-doc-analysis/embedder"
	"github.com/MegaGrindStone/go-doc-analysis/llm"
	"github.com/MegaGrindStone/go-doc-analysis/server"
	"github.com/MegaGrindStone/go-doc-analysis/storage"
)

type config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`

	LLM struct {
		Provider  string         `yaml:"provider"`
		APIKey    string         `yaml:"api_key"`
		Model     string         `yaml:"model"`
		Host      string         `yaml:"host"`
		MaxTokens int            `yaml:"max_tokens"`
		Params    llm.Parameters `yaml:"params"`
	} `yaml:"llm"`

	Embedder struct {
		Provider   string `yaml:"provider"`
		APIKey     string `yaml:"api_key"`
		Model      string `yaml:"model"`
		Host       string `yaml:"host"`
		Dimensions int    `yaml:"dimensions"`
	} `yaml:"embedder"`

	Storage struct {
		Backend  string `yaml:"backend"`
		Path     string `yaml:"path"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"storage"`

	Chunking    docanalysis.ChunkOptions     `yaml:"chunking"`
	Hierarchy   docanalysis.HierarchyOptions `yaml:"hierarchy"`
	Concurrency int                          `yaml:"concurrency"`
}

const configPath = "config.yaml"

func main() {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		return
	}

	logLevel := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	agent, err := newAgent(cfg, logger)
	if err != nil {
		fmt.Printf("Error creating agent: %v\n", err)
		return
	}

	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		fmt.Printf("Error creating embedder: %v\n", err)
		return
	}

	store, err := newStore(cfg)
	if err != nil {
		fmt.Printf("Error creating vector store: %v\n", err)
		return
	}

	syncManager := docanalysis.NewDocSyncManager(emb, store, cfg.Chunking, cfg.Hierarchy, logger)

	srv := server.New(syncManager, agent, emb, store, server.Config{
		Model:            cfg.LLM.Model,
		Concurrency:      cfg.Concurrency,
		ChunkOptions:     cfg.Chunking,
		HierarchyOptions: cfg.Hierarchy,
	}, logger)

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	if err := srv.Run(addr); err != nil {
		fmt.Printf("Error running server: %v\n", err)
	}
}

func newAgent(cfg *config, logger *slog.Logger) (docanalysis.Agent, error) {
	switch cfg.LLM.Provider {
	case "openai":
		return llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Params, logger), nil
	case "openai-compat":
		return llm.NewOpenAICompat(cfg.LLM.Host, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Params, logger), nil
	case "ollama":
		return llm.NewOllama(cfg.LLM.Host, cfg.LLM.Model, cfg.LLM.Params, logger), nil
	case "anthropic":
		return llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Params), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}

func newEmbedder(cfg *config, logger *slog.Logger) (docanalysis.Embedder, error) {
	switch cfg.Embedder.Provider {
	case "openai":
		return embedder.NewOpenAI(cfg.Embedder.APIKey, cfg.Embedder.Model, cfg.Embedder.Dimensions, logger), nil
	case "ollama":
		return embedder.NewOllama(cfg.Embedder.Host, cfg.Embedder.Model, cfg.Embedder.Dimensions, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %q", cfg.Embedder.Provider)
	}
}

func newStore(cfg *config) (docanalysis.VectorStore, error) {
	switch cfg.Storage.Backend {
	case "chromem":
		return storage.NewChromem(cfg.Storage.Path)
	case "bolt":
		path := cfg.Storage.Path
		if path == "" {
			path = "chunks.db"
		}
		return storage.NewBolt(path)
	case "redis":
		return storage.NewRedis(cfg.Storage.Addr, cfg.Storage.Password, cfg.Storage.DB)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.Storage.Backend)
	}
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &cfg, nil
}
