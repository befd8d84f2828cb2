package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/imfrisiv/mail-backend/config"
	"github.com/imfrisiv/mail-backend/internal/observability"
	"github.com/imfrisiv/mail-backend/services/compose"
	"github.com/imfrisiv/mail-backend/services/keycheck"
	"github.com/imfrisiv/mail-backend/services/providers"
	"github.com/imfrisiv/mail-backend/services/providers/gemini"
	"github.com/imfrisiv/mail-backend/services/providers/openai"
	"github.com/imfrisiv/mail-backend/services/providers/perplexity"
	"github.com/imfrisiv/mail-backend/services/transport"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config          *config.Config
	Logger          *zap.Logger
	MetricsRegistry *prometheus.Registry
	Metrics         *observability.Metrics

	// Providers
	ProviderRegistry *providers.Registry

	// Services
	Compose    *compose.ComposeService
	KeyChecker *keycheck.Checker

	httpClient      *http.Client
	policies        map[string]transport.Policy
	shutdownTracing observability.ShutdownFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:     cfg,
		Logger:     logger,
		httpClient: &http.Client{},
	}

	if err := deps.initObservability(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	deps.Compose = compose.NewComposeService(
		deps.ProviderRegistry,
		cfg.Compose.ProviderOrder,
		cfg.Compose.RequestTimeout,
		deps.Metrics,
		logger.Named("compose"),
	)
	deps.KeyChecker = keycheck.NewChecker(cfg.Providers, deps.httpClient, logger.Named("keycheck"))

	logger.Info("all dependencies initialized successfully",
		zap.Strings("provider_order", cfg.Compose.ProviderOrder),
		zap.Strings("available_providers", deps.Compose.Available()))
	return deps, nil
}

// initObservability sets up the metrics registry and, when enabled, tracing
func (d *Dependencies) initObservability(cfg *config.Config) error {
	d.MetricsRegistry = prometheus.NewRegistry()
	d.MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics, err := observability.NewMetrics(d.MetricsRegistry)
	if err != nil {
		return err
	}
	d.Metrics = metrics

	shutdown, err := observability.SetupTracing(cfg.Observability.TracingEnabled)
	if err != nil {
		return err
	}
	d.shutdownTracing = shutdown
	return nil
}

// initProviders registers every known provider. Providers without an API key
// stay registered so the status endpoint can report them; the compose queue
// skips them.
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry := providers.NewRegistry()
	d.policies = make(map[string]transport.Policy)

	openaiSettings := settingsFrom(cfg.Providers.OpenAI)
	perplexitySettings := settingsFrom(cfg.Providers.Perplexity)
	geminiSettings := settingsFrom(cfg.Providers.Gemini)

	adapters := []providers.Provider{
		openai.NewOpenAIAdapter(openaiSettings, d.httpClient, d.Logger.Named(openai.Name)),
		perplexity.NewPerplexityAdapter(perplexitySettings, d.httpClient, d.Logger.Named(perplexity.Name)),
		gemini.NewGeminiAdapter(geminiSettings, d.httpClient, d.Logger.Named(gemini.Name)),
	}
	d.policies[openai.Name] = openaiSettings.Policy()
	d.policies[perplexity.Name] = perplexitySettings.Policy()
	d.policies[gemini.Name] = geminiSettings.Policy()

	for _, p := range adapters {
		if err := registry.RegisterProvider(p); err != nil {
			return err
		}
		if p.Configured() {
			d.Logger.Info("registered provider", zap.String("provider", p.Name()))
		} else {
			d.Logger.Info("provider registered without API key", zap.String("provider", p.Name()))
		}
	}

	if unknown := registry.Unknown(cfg.Compose.ProviderOrder); len(unknown) > 0 {
		return fmt.Errorf("unknown providers in order: %v", unknown)
	}
	if !cfg.Providers.AnyConfigured() {
		d.Logger.Warn("no LLM providers configured")
	}

	d.ProviderRegistry = registry
	return nil
}

func settingsFrom(pc config.ProviderConfig) providers.Settings {
	return providers.Settings{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Model:      pc.Model,
		Timeout:    pc.Timeout,
		MaxRetries: providers.Retries(pc.MaxRetries),
	}
}

// ComposeDeadline is the longest one compose request may run. It is the
// configured request timeout or, when that is disabled, the sum of the
// worst-case retry chains of the queued providers. SDK-capable providers
// count twice since the REST path runs after a failed SDK call.
func (d *Dependencies) ComposeDeadline() time.Duration {
	if d.Config.Compose.RequestTimeout > 0 {
		return d.Config.Compose.RequestTimeout
	}

	var total time.Duration
	for _, name := range d.Config.Compose.ProviderOrder {
		provider, err := d.ProviderRegistry.GetProvider(name)
		if err != nil || !provider.Configured() {
			continue
		}
		chain := d.policies[provider.Name()].WorstCase()
		if _, ok := provider.(providers.SDKProvider); ok {
			chain *= 2
		}
		total += chain
	}
	return total
}

// CheckKeys verifies the provider keys and logs one line per provider
func (d *Dependencies) CheckKeys(ctx context.Context) []keycheck.Report {
	reports := d.KeyChecker.Check(ctx)
	keycheck.LogReports(d.Logger, reports)
	return reports
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.shutdownTracing != nil {
		if err := d.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shut down tracing: %w", err))
		}
	}

	if d.httpClient != nil {
		d.httpClient.CloseIdleConnections()
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
