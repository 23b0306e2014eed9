package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Compile-time interface check.
var _ Embedder = (*OpenAI)(nil)

const (
	defaultOpenAIModel      = "text-embedding-3-small"
	defaultOpenAIDimensions = 1536
	openAIEmbedURL          = "https://api.openai.com/v1/embeddings"
)

// OpenAIOptions configures the OpenAI embedding provider.
type OpenAIOptions struct {
	// Model is the embedding model to request.
	Model string

	// Dimensions is the requested vector dimensionality.
	Dimensions int

	// BaseURL is the embeddings endpoint. Any OpenAI-compatible server
	// works here.
	BaseURL string

	// HTTPClient performs the requests.
	HTTPClient *http.Client

	// MaxRetries bounds retries of retryable failures (network errors,
	// 429, 5xx). Backoff doubles per attempt starting at one second.
	MaxRetries int

	// Limiter throttles outgoing requests. Nil means unthrottled.
	Limiter *rate.Limiter
}

// DefaultOpenAIOptions contains the default OpenAI provider options.
var DefaultOpenAIOptions = OpenAIOptions{
	Model:      defaultOpenAIModel,
	Dimensions: defaultOpenAIDimensions,
	BaseURL:    openAIEmbedURL,
	MaxRetries: 3,
}

// OpenAI embeds text through the OpenAI embeddings API or any
// API-compatible endpoint.
type OpenAI struct {
	apiKey string
	opts   OpenAIOptions
}

// NewOpenAI creates an OpenAI embedding provider.
func NewOpenAI(apiKey string, optFns ...func(o *OpenAIOptions)) *OpenAI {
	opts := DefaultOpenAIOptions

	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &OpenAI{
		apiKey: apiKey,
		opts:   opts,
	}
}

func (o *OpenAI) Name() string    { return "openai:" + o.opts.Model }
func (o *OpenAI) Dimensions() int { return o.opts.Dimensions }

// Embed sends texts to the embeddings endpoint and returns vectors in
// input order.
func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(openAIEmbedRequest{
		Model:      o.opts.Model,
		Input:      texts,
		Dimensions: o.opts.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: marshal request: %w", err)
	}

	var resp openAIEmbedResponse
	var lastErr error

	for attempt := 0; attempt <= o.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
		if o.opts.Limiter != nil {
			if err := o.opts.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.opts.BaseURL, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("openai embed: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+o.apiKey)

		httpResp, err := o.opts.HTTPClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("openai embed: request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(httpResp.Body)
		_ = httpResp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("openai embed: read response: %w", err)
			continue
		}

		if httpResp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("openai embed: API error %d: %s", httpResp.StatusCode, string(respBody))
			retryable := httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500
			if !retryable {
				return nil, lastErr
			}
			continue
		}

		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, fmt.Errorf("openai embed: unmarshal response: %w", err)
		}

		lastErr = nil
		break
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	// The API reports the input position per embedding; order by it
	// rather than trusting response ordering.
	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embed: embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai embed: missing embedding for input %d", i)
		}
	}

	return vectors, nil
}

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIEmbedResponse struct {
	Data []openAIEmbedData `json:"data"`
}

type openAIEmbedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}
