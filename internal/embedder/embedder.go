// Package embedder produces fixed-dimension embedding vectors for chunk
// text and queries, right-padding any provider whose native dimension is
// smaller than the canonical dimension.
package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// Config governs the embedding provider endpoint and the canonical output
// dimension every stored vector must have.
type Config struct {
	Provider     string
	Model        string
	APIKey       string
	BaseURL      string
	CanonicalDim int
}

// Embedder embeds batches of text, padding or passing through vectors to
// match CanonicalDim.
type Embedder struct {
	cfg  Config
	http *http.Client
}

// New builds an Embedder. cfg.CanonicalDim must be positive.
func New(cfg Config) (*Embedder, error) {
	if cfg.CanonicalDim <= 0 {
		return nil, apperr.New(apperr.KindInputInvalid, "embedder canonical dimension must be positive")
	}
	return &Embedder{cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}}, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one D_canonical-length vector per input text, in order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body := embeddingRequest{Model: e.cfg.Model, Input: texts}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := e.cfg.BaseURL
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	endpoint += "/embeddings"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamTransient, err, "embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apperr.New(apperr.KindProviderQuotaExceeded, "embedding provider rate limit exceeded")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperr.New(apperr.KindUpstreamTransient, fmt.Sprintf("embedding provider returned status %d", resp.StatusCode))
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) != len(texts) {
		return nil, apperr.New(apperr.KindUpstreamTransient, "embedding provider returned a mismatched result count")
	}

	out := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vec, err := e.normalize(d.Embedding)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// normalize pads a native-dimension vector to CanonicalDim with zeros, or
// fails fast if the provider's native dimension exceeds it.
func (e *Embedder) normalize(vec []float32) ([]float32, error) {
	switch {
	case len(vec) == e.cfg.CanonicalDim:
		return vec, nil
	case len(vec) < e.cfg.CanonicalDim:
		padded := make([]float32, e.cfg.CanonicalDim)
		copy(padded, vec)
		return padded, nil
	default:
		return nil, apperr.New(apperr.KindInputInvalid,
			fmt.Sprintf("embedding provider native dimension %d exceeds canonical dimension %d", len(vec), e.cfg.CanonicalDim))
	}
}
