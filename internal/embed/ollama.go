package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/patchrag/patchrag/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama server address.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "nomic-embed-text"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string        `yaml:"host"`
	Model      string        `yaml:"model"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	// Dimensions may be 0, in which case it is detected from the first
	// embedding response.
	Dimensions int `yaml:"dimensions"`
}

// DefaultOllamaConfig returns the standard local-Ollama settings.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:       DefaultOllamaHost,
		Model:      DefaultOllamaModel,
		BatchSize:  DefaultBatchSize,
		Timeout:    DefaultTimeout,
		MaxRetries: DefaultMaxRetries,
	}
}

// OllamaEmbedder generates embeddings through Ollama's HTTP API. Every
// request carries a deadline; a backend that stops answering makes the
// embedding strategy degrade, never hang.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
	logger *slog.Logger
	dims   int
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder. It does not contact the
// backend; availability is checked lazily via Available or the first
// Embed call.
func NewOllamaEmbedder(cfg OllamaConfig, logger *slog.Logger) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OllamaEmbedder{
		// The per-request context deadline is the timeout; a client-level
		// timeout would silently override it.
		client: &http.Client{},
		config: cfg,
		logger: logger,
		dims:   cfg.Dimensions,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed, "backend returned wrong embedding count", nil)
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting the
// input into backend-sized batches and retrying transient failures.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	retryCfg := apperrors.RetryConfig{
		MaxRetries:   e.config.MaxRetries,
		InitialDelay: time.Second,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := min(start+e.config.BatchSize, len(texts))
		batch := texts[start:end]

		vecs, err := apperrors.RetryWithResult(ctx, retryCfg, func() ([][]float32, error) {
			return e.embedOnce(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, apperrors.New(apperrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("backend returned %d embeddings for %d inputs", len(vecs), len(batch)), nil)
		}
		results = append(results, vecs...)
	}

	if e.dims == 0 && len(results) > 0 {
		e.dims = len(results[0])
	}
	return results, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if reqCtx.Err() != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeEmbedTimeout, err)
		}
		return nil, apperrors.Wrap(apperrors.ErrCodeEmbedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		e.logger.Warn("embedding request rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("model", e.config.Model))
		return nil, apperrors.New(apperrors.ErrCodeEmbedUnavailable,
			fmt.Sprintf("ollama returned %d: %s", resp.StatusCode, msg), nil)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err)
	}
	return decoded.Embeddings, nil
}

// Dimensions returns the embedding dimension, or 0 before the first
// successful call when auto-detecting.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}

// Available probes the backend's tag listing with a short deadline.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
