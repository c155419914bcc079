package descriptions

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
	"time"

	pkgerrors "github.com/chromecollective/marketplace-backend/pkg/errors"
	"github.com/chromecollective/marketplace-backend/pkg/logger"
	"github.com/chromecollective/marketplace-backend/pkg/metrics"
	"github.com/chromecollective/marketplace-backend/pkg/ollama"
)

const (
	MessageTimeout     = "AI request timed out. Please try again."
	MessageUnavailable = "AI is unavailable right now. Please try again."
	MessageFailed      = "Failed to generate AI description. Please try again."
)

type generator interface {
	Generate(ctx context.Context, in ollama.GenerateRequest) (string, error)
}

// Service writes listing descriptions with an external text generator.
type Service interface {
	Describe(ctx context.Context, input Input) (string, error)
}

type Options struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
	Metrics     *metrics.Marketplace
	Logger      *logger.Logger
}

type service struct {
	gen  generator
	opts Options
	logg *logger.Logger
	now  func() time.Time
}

func NewService(gen generator, opts Options) (Service, error) {
	if gen == nil {
		return nil, fmt.Errorf("text generator required")
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("ai timeout must be positive")
	}
	if opts.MaxTokens <= 0 {
		return nil, fmt.Errorf("ai max tokens must be positive")
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{gen: gen, opts: opts, logg: logg, now: time.Now}, nil
}

func (s *service) Describe(ctx context.Context, input Input) (string, error) {
	if strings.TrimSpace(input.Title) == "" {
		return "", pkgerrors.FieldError("title", "is required for AI description generation")
	}

	start := s.now()
	callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	raw, err := s.gen.Generate(callCtx, ollama.GenerateRequest{
		Prompt:      BuildPrompt(input),
		Temperature: s.opts.Temperature,
		NumPredict:  s.opts.MaxTokens,
	})
	elapsed := s.now().Sub(start)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"title":       input.Title,
		"category":    input.Category,
		"duration_ms": elapsed.Milliseconds(),
	})

	if err != nil {
		outcome, typed := classify(err)
		s.opts.Metrics.ObserveAIDescription(outcome, elapsed)
		s.logg.Error(logCtx, "ai.description_failed", err)
		return "", typed
	}

	description := Sanitize(raw, s.opts.MaxTokens)
	if description == "" {
		s.opts.Metrics.ObserveAIDescription(metrics.OutcomeError, elapsed)
		s.logg.Warn(logCtx, "ai.description_empty")
		return "", pkgerrors.New(pkgerrors.CodeUpstream, MessageFailed)
	}

	s.opts.Metrics.ObserveAIDescription(metrics.OutcomeSuccess, elapsed)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"response_length":  len(raw),
		"sanitized_length": len(description),
	}), "ai.description_generated")
	return description, nil
}

// classify maps a generator failure to a metrics outcome and a typed error. Timeouts and
// transport failures are retryable 503s; anything else is a generic failure.
func classify(err error) (string, *pkgerrors.Error) {
	if isTimeout(err) {
		return metrics.OutcomeTimeout, pkgerrors.Wrap(pkgerrors.CodeDependency, err, MessageTimeout)
	}
	if isUnreachable(err) {
		return metrics.OutcomeUnavailable, pkgerrors.Wrap(pkgerrors.CodeDependency, err, MessageUnavailable)
	}
	return metrics.OutcomeError, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, MessageFailed)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, context.Canceled) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
