// Package client is the Go counterpart of the seller app: it requests upload grants,
// pushes image bytes straight to object storage and publishes listings.
package client

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

	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/types"
)

const (
	defaultTimeout     = 30 * time.Second
	errorBodyReadLimit = 4096
)

var errBaseURLRequired = errors.New("marketplace base url is required")

// Client talks to the marketplace API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	prefix     string
	hook       StatusHook
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client. It is used for both API calls and
// storage PUTs.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBearerToken attaches an identity token to API calls. Storage PUTs never carry it.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithPrefix sets the object key prefix requested for every upload grant.
func WithPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = strings.TrimSpace(prefix)
	}
}

// WithStatusHook registers a callback for per-image status changes.
func WithStatusHook(hook StatusHook) Option {
	return func(c *Client) {
		c.hook = hook
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}

	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// APIError is an error response returned by the marketplace API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("marketplace api status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("marketplace api status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Grant is the response of POST /api/uploads/presign.
type Grant struct {
	PresignedURL string `json:"presignedUrl"`
	FileKey      string `json:"fileKey"`
	PublicURL    string `json:"publicUrl"`
	ExpiresIn    int    `json:"expiresIn"`
	// ContentType is the value the URL was signed for. The PUT must send it unchanged.
	ContentType string `json:"contentType"`
}

// RequestUploadGrant asks the API for a presigned PUT. An empty prefix falls back to the
// client prefix and then to the server default.
func (c *Client) RequestUploadGrant(ctx context.Context, fileName, contentType, prefix string) (*Grant, error) {
	if strings.TrimSpace(prefix) == "" {
		prefix = c.prefix
	}
	payload := struct {
		FileName    string `json:"fileName"`
		ContentType string `json:"contentType"`
		Prefix      string `json:"prefix,omitempty"`
	}{fileName, contentType, prefix}

	var grant Grant
	if err := c.doJSON(ctx, http.MethodPost, "/api/uploads/presign", payload, &grant); err != nil {
		return nil, err
	}
	if grant.PresignedURL == "" || grant.FileKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "upload grant response is incomplete")
	}
	return &grant, nil
}

// ListingDraft is the body of POST /api/listings. Price is sent as a decimal string.
type ListingDraft struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       string           `json:"price"`
	Currency    string           `json:"currency,omitempty"`
	Category    string           `json:"category,omitempty"`
	Condition   string           `json:"condition,omitempty"`
	Images      []types.ImageRef `json:"images,omitempty"`
	Tags        []string         `json:"tags,omitempty"`
}

// Listing is the listing representation returned by the API.
type Listing struct {
	ID          string           `json:"id"`
	OwnerID     string           `json:"ownerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       float64          `json:"price"`
	Currency    string           `json:"currency"`
	Category    string           `json:"category"`
	Condition   string           `json:"condition"`
	Status      string           `json:"status"`
	Images      []types.ImageRef `json:"images"`
	Tags        []string         `json:"tags"`
	ExpiresAt   time.Time        `json:"expiresAt"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func (c *Client) CreateListing(ctx context.Context, draft ListingDraft) (*Listing, error) {
	var resp struct {
		Message string  `json:"message"`
		Listing Listing `json:"listing"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/listings", draft, &resp); err != nil {
		return nil, err
	}
	return &resp.Listing, nil
}

// PublishListing uploads images in order and creates the listing with the resulting
// references. No listing is created when any upload fails.
func (c *Client) PublishListing(ctx context.Context, draft ListingDraft, images []Image) (*Listing, error) {
	refs, err := c.UploadAll(ctx, images)
	if err != nil {
		return nil, err
	}
	draft.Images = refs
	return c.CreateListing(ctx, draft)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marketplace api unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "decode api response")
	}
	return nil
}

func decodeAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		apiErr.Details = envelope.Error.Details
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
