package uploads

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
	"unicode"

	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/google/uuid"
)

const (
	maxFileNameRunes = 200
	maxPrefixDepth   = 4
)

// grantFailedMessage is the single client-facing condition for storage errors during issuance.
const grantFailedMessage = "failed to generate upload URL"

type objectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (*url.URL, error)
	PublicURL(key string) string
}

// Service issues single-object upload grants.
type Service interface {
	RequestGrant(ctx context.Context, input GrantInput) (*Grant, error)
	PublicURL(key string) (string, error)
}

// Options tunes grant issuance. Zero values fall back to the defaults below.
type Options struct {
	Expiry        time.Duration
	DefaultPrefix string
	AllowedTypes  []string
	Metrics       *metrics.Marketplace
	Logger        *logger.Logger
}

type service struct {
	store         objectStore
	expiry        time.Duration
	defaultPrefix string
	allowed       map[string]struct{}
	metrics       *metrics.Marketplace
	logg          *logger.Logger
	newID         func() uuid.UUID
}

// NewService constructs the grant service on top of an object store.
func NewService(store objectStore, opts Options) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("object store required")
	}
	if opts.Expiry < 0 {
		return nil, fmt.Errorf("upload expiry must be positive")
	}
	if opts.Expiry == 0 {
		opts.Expiry = time.Hour
	}
	defaultPrefix, err := normalizePrefix(opts.DefaultPrefix)
	if err != nil {
		return nil, fmt.Errorf("default prefix: %w", err)
	}

	allowed := make(map[string]struct{}, len(opts.AllowedTypes))
	for _, t := range opts.AllowedTypes {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			allowed[t] = struct{}{}
		}
	}

	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	return &service{
		store:         store,
		expiry:        opts.Expiry,
		defaultPrefix: defaultPrefix,
		allowed:       allowed,
		metrics:       opts.Metrics,
		logg:          logg,
		newID:         uuid.New,
	}, nil
}

// GrantInput is the caller's request for one upload.
type GrantInput struct {
	FileName    string
	ContentType string
	Prefix      string
}

// Grant authorizes one PUT of ContentType to PresignedURL until ExpiresIn seconds pass.
type Grant struct {
	PresignedURL string `json:"presignedUrl"`
	FileKey      string `json:"fileKey"`
	PublicURL    string `json:"publicUrl"`
	ExpiresIn    int    `json:"expiresIn"`
	ContentType  string `json:"contentType"`
}

func (s *service) RequestGrant(ctx context.Context, input GrantInput) (*Grant, error) {
	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		s.metrics.IncUploadGrant(metrics.OutcomeInvalid)
		return nil, pkgerrors.FieldError("fileName", "is required")
	}
	// signed as sent; the client PUTs this exact header value
	contentType := strings.TrimSpace(input.ContentType)
	if contentType == "" {
		s.metrics.IncUploadGrant(metrics.OutcomeInvalid)
		return nil, pkgerrors.FieldError("contentType", "is required")
	}
	if !s.isAllowedType(contentType) {
		s.metrics.IncUploadGrant(metrics.OutcomeInvalid)
		return nil, pkgerrors.FieldError("contentType", "is not an allowed upload type")
	}

	prefix := s.defaultPrefix
	if strings.TrimSpace(input.Prefix) != "" {
		p, err := normalizePrefix(input.Prefix)
		if err != nil {
			s.metrics.IncUploadGrant(metrics.OutcomeInvalid)
			return nil, pkgerrors.FieldError("prefix", err.Error())
		}
		prefix = p
	}

	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		s.metrics.IncUploadGrant(metrics.OutcomeInvalid)
		return nil, pkgerrors.FieldError("fileName", "has no usable characters")
	}

	key := buildObjectKey(prefix, s.newID(), cleanName)

	signed, err := s.store.PresignPut(ctx, key, contentType, s.expiry)
	if err != nil {
		s.metrics.IncUploadGrant(metrics.OutcomeError)
		s.logg.Error(s.logg.WithField(ctx, "file_key", key), "upload.grant_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, grantFailedMessage)
	}

	s.metrics.IncUploadGrant(metrics.OutcomeSuccess)
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"file_key": key, "content_type": contentType}), "upload.grant_issued")

	return &Grant{
		PresignedURL: signed.String(),
		FileKey:      key,
		PublicURL:    s.store.PublicURL(key),
		ExpiresIn:    int(s.expiry / time.Second),
		ContentType:  contentType,
	}, nil
}

// PublicURL resolves the retrieval address of an already uploaded key.
func (s *service) PublicURL(key string) (string, error) {
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", pkgerrors.FieldError("fileKey", "is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." || segment == "." || segment == "" {
			return "", pkgerrors.FieldError("fileKey", "is not a valid object key")
		}
	}
	return s.store.PublicURL(key), nil
}

func (s *service) isAllowedType(contentType string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	_, ok := s.allowed[strings.ToLower(strings.TrimSpace(contentType))]
	return ok
}

// buildObjectKey yields [prefix/]<uuid>-<fileName>. The random id makes keys unique
// across concurrent callers without coordination.
func buildObjectKey(prefix string, id uuid.UUID, fileName string) string {
	name := id.String() + "-" + fileName
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func normalizePrefix(raw string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return "", nil
	}
	segments := strings.Split(trimmed, "/")
	if len(segments) > maxPrefixDepth {
		return "", fmt.Errorf("must have at most %d segments", maxPrefixDepth)
	}
	for _, segment := range segments {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("must not contain empty or relative segments")
		}
		for _, r := range segment {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_') {
				return "", fmt.Errorf("contains unsupported character %q", r)
			}
		}
	}
	return strings.Join(segments, "/"), nil
}

func sanitizeFileName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	clean := path.Base(name)
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	count := 0
	for _, r := range clean {
		if count >= maxFileNameRunes {
			break
		}
		switch {
		case unicode.IsControl(r):
			continue
		case unicode.IsSpace(r), strings.ContainsRune("?#%&+=\"'<>|*:", r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
		count++
	}
	return strings.Trim(b.String(), "-_.")
}
