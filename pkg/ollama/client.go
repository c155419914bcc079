package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/config"
)

const maxErrorBody = 512

// Client calls a local Ollama server's non-streaming generate endpoint.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
}

// GenerateRequest is one completion request. Zero options are left to the server defaults.
type GenerateRequest struct {
	Prompt      string
	Temperature float64
	NumPredict  int
}

type generateBody struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options *generateOption `json:"options,omitempty"`
}

type generateOption struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ollama %d", e.StatusCode)
	}
	return fmt.Sprintf("ollama %d: %s", e.StatusCode, e.Body)
}

// New builds a client from the AI config. Deadlines come from the caller's context;
// the transport timeout is a backstop.
func New(cfg config.AIConfig, httpClient *http.Client) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if base == "" {
		return nil, errors.New("ollama host is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("ollama model is required")
	}
	if httpClient == nil {
		timeout := 2 * cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: base, model: cfg.Model, http: httpClient}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate returns the model's full response text.
func (c *Client) Generate(ctx context.Context, in GenerateRequest) (string, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return "", errors.New("empty prompt")
	}
	body := generateBody{Model: c.model, Prompt: in.Prompt}
	if in.Temperature != 0 || in.NumPredict != 0 {
		body.Options = &generateOption{Temperature: in.Temperature, NumPredict: in.NumPredict}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return out.Response, nil
}

// Ping checks the server answers its version endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: resp.StatusCode, Body: msg}
}
