// Package config owns the PatchRAG configuration surface: defaults,
// file loading, environment overrides, and fail-fast validation.
// Precedence, lowest to highest: built-in defaults, user config
// (~/.config/patchrag/config.yaml), project config (.patchrag.yaml),
// PATCHRAG_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/patchrag/patchrag/internal/chunk"
	"github.com/patchrag/patchrag/internal/embed"
	apperrors "github.com/patchrag/patchrag/internal/errors"
	"github.com/patchrag/patchrag/internal/search"
	"github.com/patchrag/patchrag/internal/store"
)

// Config is the complete PatchRAG configuration.
type Config struct {
	Version    int                 `yaml:"version"`
	Paths      PathsConfig         `yaml:"paths"`
	Chunking   ChunkingConfig      `yaml:"chunking"`
	Retrieval  RetrievalConfig     `yaml:"retrieval"`
	Embeddings embed.FactoryConfig `yaml:"embeddings"`
	Index      IndexConfig         `yaml:"index"`
	LogLevel   string              `yaml:"log_level"`
	LogFormat  string              `yaml:"log_format"`
}

// PathsConfig selects which files enter the index.
type PathsConfig struct {
	Include          []string `yaml:"include"`
	Exclude          []string `yaml:"exclude"`
	RespectGitignore bool     `yaml:"respect_gitignore"`
	MaxFileSize      int64    `yaml:"max_file_size"`
}

// ChunkingConfig configures how files are split.
type ChunkingConfig struct {
	// Strategy is one of fixed, ast, hybrid.
	Strategy   string `yaml:"strategy"`
	WindowSize int    `yaml:"window_size"`
	Overlap    int    `yaml:"overlap"`
}

// RetrievalConfig configures query-time behavior.
type RetrievalConfig struct {
	// Strategy is one of keyword, bm25, embedding, hybrid.
	Strategy string  `yaml:"strategy"`
	K1       float64 `yaml:"k1"`
	B        float64 `yaml:"b"`
	TopK     int     `yaml:"top_k"`

	// FusionMode is rrf or weighted. The two are mutually exclusive
	// per run.
	FusionMode string             `yaml:"fusion_mode"`
	KRRF       int                `yaml:"k_rrf"`
	Weights    map[string]float64 `yaml:"weights"`

	// Reranker is noop, simple, or heuristic ("" disables).
	Reranker              string  `yaml:"reranker"`
	RerankerLengthPenalty float64 `yaml:"reranker_length_penalty"`

	PathBoostDedupe bool          `yaml:"path_boost_dedupe"`
	EmbedTimeout    time.Duration `yaml:"embed_timeout"`
}

// IndexConfig configures index persistence.
type IndexConfig struct {
	// Dir is where the chunk store and lock file live, relative to
	// the project root unless absolute.
	Dir     string `yaml:"dir"`
	Workers int    `yaml:"workers"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include:          nil,
			Exclude:          nil,
			RespectGitignore: true,
			MaxFileSize:      0, // scanner default
		},
		Chunking: ChunkingConfig{
			Strategy:   string(chunk.StrategyHybrid),
			WindowSize: chunk.DefaultWindowSize,
			Overlap:    chunk.DefaultOverlap,
		},
		Retrieval: RetrievalConfig{
			Strategy:              search.StrategyBM25,
			K1:                    store.DefaultBM25Config().K1,
			B:                     store.DefaultBM25Config().B,
			TopK:                  search.DefaultTopK,
			FusionMode:            string(search.FusionRRF),
			KRRF:                  search.DefaultRRFConstant,
			Weights:               nil,
			Reranker:              search.RerankerNoop,
			RerankerLengthPenalty: 0,
			PathBoostDedupe:       true,
			EmbedTimeout:          search.DefaultEmbedTimeout,
		},
		Embeddings: embed.FactoryConfig{
			Backend:   embed.BackendStatic,
			CacheSize: embed.DefaultEmbeddingCacheSize,
			Ollama:    embed.DefaultOllamaConfig(),
		},
		Index: IndexConfig{
			Dir:     ".patchrag",
			Workers: 0, // GOMAXPROCS
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load builds the effective configuration for a project directory and
// validates it. Configuration errors are fatal here, before any
// indexing or query work begins.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromProject(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UserConfigPath follows the XDG base directory convention.
func UserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "patchrag", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "patchrag", "config.yaml")
	}
	return filepath.Join(home, ".config", "patchrag", "config.yaml")
}

func loadUserConfig() (*Config, error) {
	path := UserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromProject reads .patchrag.yaml (or .yml) from the project root
// if present. A missing file means defaults.
func (c *Config) loadFromProject(dir string) error {
	for _, name := range []string{".patchrag.yaml", ".patchrag.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeConfigNotFound, err, "read config %s", path)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeConfigInvalid, err, "parse config %s", path)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays non-zero values from other onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}
	if other.Paths.MaxFileSize != 0 {
		c.Paths.MaxFileSize = other.Paths.MaxFileSize
	}
	// RespectGitignore defaults true; an explicit false in a file is
	// indistinguishable from unset, so files can only disable it via
	// the env override.

	if other.Chunking.Strategy != "" {
		c.Chunking.Strategy = other.Chunking.Strategy
	}
	if other.Chunking.WindowSize != 0 {
		c.Chunking.WindowSize = other.Chunking.WindowSize
	}
	if other.Chunking.Overlap != 0 {
		c.Chunking.Overlap = other.Chunking.Overlap
	}

	if other.Retrieval.Strategy != "" {
		c.Retrieval.Strategy = other.Retrieval.Strategy
	}
	if other.Retrieval.K1 != 0 {
		c.Retrieval.K1 = other.Retrieval.K1
	}
	if other.Retrieval.B != 0 {
		c.Retrieval.B = other.Retrieval.B
	}
	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.FusionMode != "" {
		c.Retrieval.FusionMode = other.Retrieval.FusionMode
	}
	if other.Retrieval.KRRF != 0 {
		c.Retrieval.KRRF = other.Retrieval.KRRF
	}
	if len(other.Retrieval.Weights) > 0 {
		c.Retrieval.Weights = other.Retrieval.Weights
	}
	if other.Retrieval.Reranker != "" {
		c.Retrieval.Reranker = other.Retrieval.Reranker
	}
	if other.Retrieval.RerankerLengthPenalty != 0 {
		c.Retrieval.RerankerLengthPenalty = other.Retrieval.RerankerLengthPenalty
	}
	if other.Retrieval.EmbedTimeout != 0 {
		c.Retrieval.EmbedTimeout = other.Retrieval.EmbedTimeout
	}

	if other.Embeddings.Backend != "" {
		c.Embeddings.Backend = other.Embeddings.Backend
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}
	if other.Embeddings.Ollama.Host != "" {
		c.Embeddings.Ollama.Host = other.Embeddings.Ollama.Host
	}
	if other.Embeddings.Ollama.Model != "" {
		c.Embeddings.Ollama.Model = other.Embeddings.Ollama.Model
	}
	if other.Embeddings.Ollama.Timeout != 0 {
		c.Embeddings.Ollama.Timeout = other.Embeddings.Ollama.Timeout
	}
	if other.Embeddings.Ollama.Dimensions != 0 {
		c.Embeddings.Ollama.Dimensions = other.Embeddings.Ollama.Dimensions
	}

	if other.Index.Dir != "" {
		c.Index.Dir = other.Index.Dir
	}
	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}

	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.LogFormat != "" {
		c.LogFormat = other.LogFormat
	}
}

// applyEnvOverrides applies PATCHRAG_* environment variables, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PATCHRAG_CHUNK_STRATEGY"); v != "" {
		c.Chunking.Strategy = v
	}
	if v := os.Getenv("PATCHRAG_RETRIEVAL_STRATEGY"); v != "" {
		c.Retrieval.Strategy = v
	}
	if v := os.Getenv("PATCHRAG_BM25_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.K1 = f
		}
	}
	if v := os.Getenv("PATCHRAG_BM25_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.B = f
		}
	}
	if v := os.Getenv("PATCHRAG_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.Retrieval.KRRF = k
		}
	}
	if v := os.Getenv("PATCHRAG_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = k
		}
	}
	if v := os.Getenv("PATCHRAG_RERANKER"); v != "" {
		c.Retrieval.Reranker = v
	}
	if v := os.Getenv("PATCHRAG_EMBED_BACKEND"); v != "" {
		c.Embeddings.Backend = v
	}
	if v := os.Getenv("PATCHRAG_OLLAMA_HOST"); v != "" {
		c.Embeddings.Ollama.Host = v
	}
	if v := os.Getenv("PATCHRAG_RESPECT_GITIGNORE"); v != "" {
		c.Paths.RespectGitignore = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("PATCHRAG_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("PATCHRAG_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
}

// Validate rejects invalid configuration with a descriptive error
// rather than silently defaulting.
func (c *Config) Validate() error {
	switch chunk.Strategy(c.Chunking.Strategy) {
	case chunk.StrategyFixed, chunk.StrategyAST, chunk.StrategyHybrid:
	default:
		return apperrors.New(apperrors.ErrCodeStrategyUnknown,
			"unknown chunk strategy: "+c.Chunking.Strategy, nil).
			WithSuggestion("valid strategies: fixed, ast, hybrid")
	}
	if c.Chunking.WindowSize <= 0 {
		return configInvalid("chunking.window_size must be positive, got " + strconv.Itoa(c.Chunking.WindowSize))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.WindowSize {
		return configInvalid("chunking.overlap must be in [0, window_size), got " + strconv.Itoa(c.Chunking.Overlap))
	}

	switch c.Retrieval.Strategy {
	case search.StrategyBM25, search.StrategyKeyword, search.StrategyEmbedding, search.StrategyHybrid:
	default:
		return apperrors.New(apperrors.ErrCodeStrategyUnknown,
			"unknown retrieval strategy: "+c.Retrieval.Strategy, nil).
			WithSuggestion("valid strategies: keyword, bm25, embedding, hybrid")
	}
	if c.Retrieval.K1 <= 0 {
		return configInvalid("retrieval.k1 must be positive, got " + formatFloat(c.Retrieval.K1))
	}
	if c.Retrieval.B < 0 || c.Retrieval.B > 1 {
		return configInvalid("retrieval.b must be in [0, 1], got " + formatFloat(c.Retrieval.B))
	}
	if c.Retrieval.KRRF <= 0 {
		return configInvalid("retrieval.k_rrf must be positive, got " + strconv.Itoa(c.Retrieval.KRRF))
	}
	if c.Retrieval.TopK <= 0 {
		return configInvalid("retrieval.top_k must be positive, got " + strconv.Itoa(c.Retrieval.TopK))
	}
	switch search.FusionMode(c.Retrieval.FusionMode) {
	case search.FusionRRF, search.FusionWeighted:
	default:
		return configInvalid("retrieval.fusion_mode must be rrf or weighted, got " + c.Retrieval.FusionMode)
	}
	for name, w := range c.Retrieval.Weights {
		if w < 0 {
			return configInvalid("retrieval.weights." + name + " must be non-negative, got " + formatFloat(w))
		}
		switch name {
		case search.StrategyBM25, search.StrategyKeyword, search.StrategyEmbedding:
		default:
			return apperrors.New(apperrors.ErrCodeStrategyUnknown,
				"weight for unknown strategy: "+name, nil)
		}
	}
	switch c.Retrieval.Reranker {
	case "", search.RerankerNoop, search.RerankerSimple, "heuristic":
	default:
		return configInvalid("unknown reranker: " + c.Retrieval.Reranker)
	}
	if c.Retrieval.RerankerLengthPenalty < 0 {
		return configInvalid("retrieval.reranker_length_penalty must be non-negative")
	}

	switch c.Embeddings.Backend {
	case "", embed.BackendStatic, embed.BackendOllama:
	default:
		return configInvalid("embeddings.backend must be static or ollama, got " + c.Embeddings.Backend)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return configInvalid("log_level must be debug, info, warn, or error, got " + c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return configInvalid("log_format must be text or json, got " + c.LogFormat)
	}
	return nil
}

// BM25 returns the BM25 parameters as a store config.
func (c *Config) BM25() store.BM25Config {
	return store.BM25Config{K1: c.Retrieval.K1, B: c.Retrieval.B}
}

// ChunkOptions returns the chunker options.
func (c *Config) ChunkOptions() chunk.Options {
	return chunk.Options{
		Strategy:   chunk.Strategy(c.Chunking.Strategy),
		WindowSize: c.Chunking.WindowSize,
		Overlap:    c.Chunking.Overlap,
	}
}

// EngineConfig returns the search engine configuration.
func (c *Config) EngineConfig() search.EngineConfig {
	return search.EngineConfig{
		Strategy: c.Retrieval.Strategy,
		Fusion: search.FusionConfig{
			Mode:    search.FusionMode(c.Retrieval.FusionMode),
			KRRF:    c.Retrieval.KRRF,
			Weights: c.Retrieval.Weights,
		},
		Reranker:              c.Retrieval.Reranker,
		RerankerLengthPenalty: c.Retrieval.RerankerLengthPenalty,
		PathBoostDedupe:       c.Retrieval.PathBoostDedupe,
		EmbedTimeout:          c.Retrieval.EmbedTimeout,
	}
}

// IndexDir resolves the index directory against the project root.
func (c *Config) IndexDir(root string) string {
	if filepath.IsAbs(c.Index.Dir) {
		return c.Index.Dir
	}
	return filepath.Join(root, c.Index.Dir)
}

// WriteYAML writes the configuration to a file, backing up any
// existing file first.
func (c *Config) WriteYAML(path string) error {
	if _, err := BackupConfig(path); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeInternal, err, "marshal config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "create config dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrapf(apperrors.ErrCodeStorage, err, "write config %s", path)
	}
	return nil
}

// FindProjectRoot walks up from startDir looking for a .git directory
// or a .patchrag.yaml file. Falls back to startDir.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrCodeInvalidPath, err, "resolve %s", startDir)
	}

	current := absDir
	for {
		if dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		if fileExists(filepath.Join(current, ".patchrag.yaml")) ||
			fileExists(filepath.Join(current, ".patchrag.yml")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func configInvalid(msg string) error {
	return apperrors.ConfigError(msg, nil)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
