package compose

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/internal/observability"
	"github.com/imfrisiv/mail-backend/services"
	"github.com/imfrisiv/mail-backend/services/providers"
	"github.com/imfrisiv/mail-backend/services/transport"
)

// Provider call paths
const (
	PathSDK  = "sdk"
	PathREST = "rest"
)

type generateFunc func(ctx context.Context, prompt providers.Prompt) (*providers.Generation, error)

// ComposeService tries configured LLM providers in priority order and
// returns the first non-empty generation
type ComposeService struct {
	registry       *providers.Registry
	order          []string
	requestTimeout time.Duration
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewComposeService creates a new compose service. order is the provider
// priority; requestTimeout bounds the whole request (zero disables it).
func NewComposeService(
	registry *providers.Registry,
	order []string,
	requestTimeout time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ComposeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComposeService{
		registry:       registry,
		order:          append([]string(nil), order...),
		requestTimeout: requestTimeout,
		metrics:        metrics,
		logger:         logger,
	}
}

// Order returns the configured provider priority
func (s *ComposeService) Order() []string {
	return append([]string(nil), s.order...)
}

// Available returns the names of the providers a request would try, in order
func (s *ComposeService) Available() []string {
	queue := s.registry.Ordered(s.order)
	names := make([]string, 0, len(queue))
	for _, p := range queue {
		names = append(names, p.Name())
	}
	return names
}

// Compose runs the fallback loop. Providers are tried sequentially; the
// first non-empty text wins and later providers are not contacted. When all
// fail an *AggregateError lists every failure in attempt order.
func (s *ComposeService) Compose(ctx context.Context, req Request) (*Result, error) {
	ctx, span := observability.StartSpan(ctx, "compose",
		attribute.String(observability.SpanAttrRequestID, req.RequestID))
	defer span.End()

	logger := observability.WithTrace(ctx, s.logger).With(zap.String("request_id", req.RequestID))

	text := strings.TrimSpace(req.Prompt)
	if text == "" {
		s.metrics.RecordCompose(outcomeInvalid)
		observability.SetSpanError(span, services.ErrPromptRequired)
		return nil, services.ErrPromptRequired
	}

	queue := s.registry.Ordered(s.order)
	if len(queue) == 0 {
		logger.Warn("compose requested but no provider is configured", zap.Strings("order", s.order))
		s.metrics.RecordCompose(outcomeUnconfigured)
		observability.SetSpanError(span, services.ErrNoProviderConfigured)
		return nil, services.ErrNoProviderConfigured
	}

	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	prompt := providers.Prompt{Text: text, Context: req.Context}
	failures := make([]Failure, 0, len(queue))

	for _, provider := range queue {
		name := provider.Name()
		gen, err := s.try(ctx, provider, prompt, logger)
		if err == nil && gen.Text != "" {
			logger.Info("compose succeeded",
				zap.String("provider", name),
				zap.Int("failed_providers", len(failures)))
			s.metrics.RecordCompose(outcomeSuccess)
			span.SetAttributes(attribute.String(observability.SpanAttrProvider, name))
			observability.SetSpanSuccess(span)
			return &Result{Provider: name, Text: gen.Text, Raw: gen.Raw, Attempts: failures}, nil
		}

		var failure Failure
		if err != nil {
			failure = classify(name, err)
		} else {
			failure = Failure{Provider: name, Reason: ReasonEmptyResponse, Message: "provider returned no text"}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			if errors.Is(ctxErr, context.Canceled) {
				failure.Reason = ReasonCanceled
				failure.Message = "request canceled"
			}
			failures = append(failures, failure)
			logger.Warn("compose aborted", zap.String("provider", name), zap.Error(ctxErr))
			s.metrics.RecordCompose(outcomeCanceled)
			observability.SetSpanError(span, ctxErr)
			return nil, &AggregateError{Failures: failures}
		}

		failures = append(failures, failure)
		logger.Warn("provider failed, trying next",
			zap.String("provider", name),
			zap.Int("status", failure.Status),
			zap.String("reason", string(failure.Reason)),
			zap.String("message", failure.Message))
	}

	aggErr := &AggregateError{Failures: failures}
	logger.Error("all providers failed",
		zap.Int("status", aggErr.HTTPStatus()),
		zap.Any("failures", failures))
	s.metrics.RecordCompose(outcomeFailed)
	observability.SetSpanError(span, aggErr)
	return nil, aggErr
}

// try runs the SDK path first when the provider has one, then the REST path
// for the same provider
func (s *ComposeService) try(ctx context.Context, provider providers.Provider, prompt providers.Prompt, logger *zap.Logger) (*providers.Generation, error) {
	name := provider.Name()

	if sdk, ok := provider.(providers.SDKProvider); ok {
		gen, err := s.call(ctx, name, PathSDK, sdk.GenerateSDK, prompt)
		if err == nil && gen.Text != "" {
			return gen, nil
		}
		if ctx.Err() != nil {
			return gen, err
		}
		logger.Warn("sdk path failed, falling back to rest",
			zap.String("provider", name),
			zap.Int("status", transport.StatusOf(err)),
			zap.Error(err))
	}

	return s.call(ctx, name, PathREST, provider.Generate, prompt)
}

// call invokes one path of one provider with tracing and metrics. A nil
// generation without error is normalized to an empty one.
func (s *ComposeService) call(ctx context.Context, name, path string, fn generateFunc, prompt providers.Prompt) (*providers.Generation, error) {
	ctx, span := observability.StartProviderSpan(ctx, name, path)
	defer span.End()

	start := time.Now()
	gen, err := fn(ctx, prompt)
	if err == nil && gen == nil {
		gen = &providers.Generation{}
	}

	result := observability.ResultSuccess
	switch {
	case err != nil:
		result = observability.ResultError
		span.SetAttributes(attribute.Int(observability.SpanAttrStatus, transport.StatusOf(err)))
		observability.SetSpanError(span, err)
	case gen.Text == "":
		result = observability.ResultEmpty
		span.SetAttributes(attribute.String(observability.SpanAttrReason, string(ReasonEmptyResponse)))
	default:
		observability.SetSpanSuccess(span)
	}

	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		span.SetAttributes(attribute.Int(observability.SpanAttrAttempts, perr.Attempts))
	}

	s.metrics.RecordProviderAttempt(name, path, result, time.Since(start))
	return gen, err
}

// classify turns a provider error into a recorded failure
func classify(provider string, err error) Failure {
	f := Failure{
		Provider: provider,
		Status:   transport.StatusOf(err),
		Message:  err.Error(),
	}

	var perr *providers.ProviderError
	if errors.As(err, &perr) {
		f.Message = perr.Message
	}

	switch {
	case errors.Is(err, providers.ErrMissingAPIKey):
		f.Reason = ReasonConfiguration
	case errors.Is(err, context.Canceled):
		f.Reason = ReasonCanceled
	case f.Status == http.StatusUnauthorized || f.Status == http.StatusForbidden:
		f.Reason = ReasonAuth
	case f.Status == http.StatusTooManyRequests:
		f.Reason = ReasonRateLimit
	case f.Status == 0:
		f.Reason = ReasonNetwork
	default:
		f.Reason = ReasonUpstream
	}
	return f
}
