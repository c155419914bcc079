package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/chromecollective/marketplace-backend/pkg/enums"
	"github.com/chromecollective/marketplace-backend/pkg/types"
)

// Status is the lifecycle of one image in an upload batch.
type Status = enums.UploadStatus

const (
	StatusSelected        = enums.UploadStatusSelected
	StatusRequestingGrant = enums.UploadStatusRequestingGrant
	StatusUploading       = enums.UploadStatusUploading
	StatusCompleted       = enums.UploadStatusCompleted
	StatusFailed          = enums.UploadStatusFailed
)

// StatusHook observes status changes. It runs on the uploading goroutine.
type StatusHook func(index int, status Status)

// Image is one locally selected file.
type Image struct {
	FileName    string
	ContentType string
	Data        []byte
}

// UploadError reports the image that aborted a batch.
type UploadError struct {
	Index    int
	FileName string
	Stage    Status
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("image %d (%s) failed while %s: %v", e.Index, e.FileName, e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Batch tracks per-image status of one upload run. Statuses is safe to call while the
// batch is uploading.
type Batch struct {
	images []Image

	mu       sync.Mutex
	statuses []Status
}

func NewBatch(images []Image) *Batch {
	statuses := make([]Status, len(images))
	for i := range statuses {
		statuses[i] = StatusSelected
	}
	return &Batch{images: images, statuses: statuses}
}

// Statuses returns a snapshot in selection order.
func (b *Batch) Statuses() []Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Status, len(b.statuses))
	copy(out, b.statuses)
	return out
}

func (b *Batch) set(i int, status Status) {
	b.mu.Lock()
	b.statuses[i] = status
	b.mu.Unlock()
}

// UploadAll uploads images one at a time in selection order.
func (c *Client) UploadAll(ctx context.Context, images []Image) ([]types.ImageRef, error) {
	return c.Upload(ctx, NewBatch(images))
}

// Upload runs the batch sequentially. The first failure marks that image failed and
// aborts the batch with nil refs; objects already stored are left in place.
func (c *Client) Upload(ctx context.Context, batch *Batch) ([]types.ImageRef, error) {
	refs := make([]types.ImageRef, 0, len(batch.images))
	for i, img := range batch.images {
		ref, stage, err := c.uploadOne(ctx, batch, i, img)
		if err != nil {
			c.transition(batch, i, StatusFailed)
			return nil, &UploadError{Index: i, FileName: img.FileName, Stage: stage, Err: err}
		}
		refs = append(refs, ref)
		c.transition(batch, i, StatusCompleted)
	}
	return refs, nil
}

func (c *Client) uploadOne(ctx context.Context, batch *Batch, i int, img Image) (types.ImageRef, Status, error) {
	if err := ctx.Err(); err != nil {
		return types.ImageRef{}, StatusSelected, err
	}

	c.transition(batch, i, StatusRequestingGrant)
	grant, err := c.RequestUploadGrant(ctx, img.FileName, img.ContentType, "")
	if err != nil {
		return types.ImageRef{}, StatusRequestingGrant, err
	}

	c.transition(batch, i, StatusUploading)
	if err := c.put(ctx, grant, img); err != nil {
		return types.ImageRef{}, StatusUploading, err
	}
	return types.ImageRef{Key: grant.FileKey, URL: grant.PublicURL}, StatusUploading, nil
}

func (c *Client) put(ctx context.Context, grant *Grant, img Image) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, grant.PresignedURL, bytes.NewReader(img.Data))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	contentType := grant.ContentType
	if contentType == "" {
		contentType = img.ContentType
	}
	req.ContentLength = int64(len(img.Data))
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload to storage: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return fmt.Errorf("storage rejected upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (c *Client) transition(batch *Batch, i int, status Status) {
	batch.set(i, status)
	if c.hook != nil {
		c.hook(i, status)
	}
}
