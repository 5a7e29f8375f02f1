package embed

import (
	"log/slog"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

// Backend names accepted by NewEmbedder.
const (
	BackendStatic = "static"
	BackendOllama = "ollama"
)

// FactoryConfig selects and configures an embedding backend.
type FactoryConfig struct {
	Backend   string       `yaml:"backend"`
	CacheSize int          `yaml:"cache_size"`
	Ollama    OllamaConfig `yaml:"ollama"`
}

// NewEmbedder builds the configured backend wrapped in the LRU cache.
// An empty backend name means static: it always works and keeps
// evaluation runs deterministic.
func NewEmbedder(cfg FactoryConfig, logger *slog.Logger) (Embedder, error) {
	var inner Embedder
	switch cfg.Backend {
	case "", BackendStatic:
		inner = NewStaticEmbedder()
	case BackendOllama:
		inner = NewOllamaEmbedder(cfg.Ollama, logger)
	default:
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid,
			"unknown embedding backend: "+cfg.Backend, nil).
			WithSuggestion(`use "static" or "ollama"`)
	}
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}
