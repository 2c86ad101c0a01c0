package features

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/erazemk/vestique/internal/imaging"
	"github.com/erazemk/vestique/internal/model"
)

const (
	defaultRemoteURL       = "https://api.voyageai.com/v1/multimodalembeddings"
	defaultRemoteModel     = "voyage-multimodal-3"
	defaultRemoteTimeout   = 30 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxDelay   = 8 * time.Second
	defaultRemoteCacheSize = 512
)

// RemoteConfig captures the settings of a multimodal embedding service.
type RemoteConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// RemoteBackbone embeds images through a Voyage-compatible multimodal
// embeddings endpoint. Results are cached by image digest.
type RemoteBackbone struct {
	cfg        RemoteConfig
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)

	mu       sync.Mutex
	cache    map[string]model.Descriptor
	order    []string
	capacity int
}

// RemoteOption customizes a RemoteBackbone.
type RemoteOption func(*RemoteBackbone)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) RemoteOption {
	return func(r *RemoteBackbone) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the retry count.
func WithRetryMaxAttempts(attempts int) RemoteOption {
	return func(r *RemoteBackbone) {
		r.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) RemoteOption {
	return func(r *RemoteBackbone) {
		r.retryBaseDelay = baseDelay
		r.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) RemoteOption {
	return func(r *RemoteBackbone) {
		r.sleeper = sleeper
	}
}

// WithCacheSize bounds the number of cached embeddings. Zero disables the cache.
func WithCacheSize(n int) RemoteOption {
	return func(r *RemoteBackbone) {
		r.capacity = n
	}
}

// NewRemoteBackbone returns a backbone that calls the configured service.
func NewRemoteBackbone(cfg RemoteConfig, opts ...RemoteOption) (*RemoteBackbone, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("remote backbone: api key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRemoteURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultRemoteModel
	}
	timeout := defaultRemoteTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	r := &RemoteBackbone{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		capacity:         defaultRemoteCacheSize,
		cache:            map[string]model.Descriptor{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Name implements Backbone.
func (r *RemoteBackbone) Name() string { return "remote:" + r.cfg.Model }

// Embed implements Backbone.
func (r *RemoteBackbone) Embed(ctx context.Context, img image.Image) (model.Descriptor, error) {
	blob, err := imaging.Encode(img)
	if err != nil {
		return nil, err
	}
	key := imaging.Digest(blob)
	if d, ok := r.cached(key); ok {
		return d, nil
	}

	payload := embeddingRequest{
		Model:     r.cfg.Model,
		InputType: "document",
		Inputs: []embeddingInput{{Content: []embeddingContent{{
			Type:        "image_base64",
			ImageBase64: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(blob),
		}}}},
	}

	attempts := max(r.retryMaxAttempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		d, err := r.embedOnce(ctx, payload)
		if err == nil {
			r.store(key, d)
			return d, nil
		}
		lastErr = err
		delay, retry := r.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("remote embed: failed after %d attempts: %w", attempts, lastErr)
}

type embeddingRequest struct {
	Inputs    []embeddingInput `json:"inputs"`
	Model     string           `json:"model"`
	InputType string           `json:"input_type,omitempty"`
}

type embeddingInput struct {
	Content []embeddingContent `json:"content"`
}

type embeddingContent struct {
	Type        string `json:"type"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("remote embed: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return "remote embed: http error: " + e.err.Error() }

func (e *transportError) Unwrap() error { return e.err }

func (r *RemoteBackbone) embedOnce(ctx context.Context, payload embeddingRequest) (model.Descriptor, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("remote embed: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("remote embed: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote embed: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After")))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: time.Duration(retryAfter) * time.Second,
		}
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("remote embed: decode response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, errors.New("remote embed: empty embedding")
	}
	return model.Descriptor(parsed.Data[0].Embedding), nil
}

func (r *RemoteBackbone) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, r.retryMaxDelay), true
			}
			return r.backoffDelay(attempt), true
		default:
			return 0, false
		}
	}
	var tErr *transportError
	if errors.As(err, &tErr) {
		return r.backoffDelay(attempt), true
	}
	return 0, false
}

func (r *RemoteBackbone) backoffDelay(attempt int) time.Duration {
	delay := r.retryBaseDelay << (attempt - 1)
	if delay <= 0 || delay > r.retryMaxDelay {
		return r.retryMaxDelay
	}
	return delay
}

func (r *RemoteBackbone) sleep(ctx context.Context, d time.Duration) error {
	if r.sleeper != nil {
		r.sleeper(d)
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *RemoteBackbone) cached(key string) (model.Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.cache[key]
	return d, ok
}

func (r *RemoteBackbone) store(key string, d model.Descriptor) {
	if r.capacity <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[key]; ok {
		return
	}
	if len(r.order) >= r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.cache, oldest)
	}
	r.cache[key] = d
	r.order = append(r.order, key)
}
