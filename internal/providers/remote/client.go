package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scenecast/internal/config"
	"scenecast/internal/services"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	maxErrorBody       = 2048
)

// HTTPDoer describes the HTTP client used by the remote generators.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config captures the settings shared by every remote generator.
type Config struct {
	ScriptURL  string
	ImageURL   string
	ComposeURL string
	APIKey     string
	Timeout    time.Duration
}

// ConfigFromSettings extracts the remote generator settings from cfg.
func ConfigFromSettings(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		ScriptURL:  cfg.Providers.ScriptURL,
		ImageURL:   cfg.Providers.ImageURL,
		ComposeURL: cfg.Providers.ComposeURL,
		APIKey:     cfg.Providers.APIKey,
		Timeout:    cfg.ProviderTimeout(),
	}
}

// Client posts JSON to the configured generator endpoints.
type Client struct {
	cfg  Config
	http HTTPDoer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs a remote generator client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &Client{
		cfg: Config{
			ScriptURL:  strings.TrimSpace(cfg.ScriptURL),
			ImageURL:   strings.TrimSpace(cfg.ImageURL),
			ComposeURL: strings.TrimSpace(cfg.ComposeURL),
			APIKey:     strings.TrimSpace(cfg.APIKey),
			Timeout:    timeout,
		},
		http: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Scripts returns the script generator backed by this client.
func (c *Client) Scripts() *ScriptGenerator { return &ScriptGenerator{client: c} }

// Images returns the image generator backed by this client.
func (c *Client) Images() *ImageGenerator { return &ImageGenerator{client: c} }

// Composer returns the video composer backed by this client.
func (c *Client) Composer() *VideoComposer { return &VideoComposer{client: c} }

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, body)
}

// postJSON sends payload to endpoint and decodes the response into out.
// Every failure is tagged as a generation error for stage.
func (c *Client) postJSON(ctx context.Context, stage, endpoint string, payload, out any) error {
	if endpoint == "" {
		return services.Wrap(services.ErrConfiguration, stage, "request", "endpoint is not configured", nil)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrGeneration, stage, "encode request", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return services.Wrap(services.ErrGeneration, stage, "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrGeneration, stage, "request", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return services.Wrap(services.ErrGeneration, stage, "request", "",
			&httpStatusError{StatusCode: resp.StatusCode, Body: string(snippet)})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrGeneration, stage, "decode response", "", err)
	}
	return nil
}
