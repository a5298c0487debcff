// Package metrics exposes worker-side Prometheus metrics for model calls and
// tool invocations.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

const namespace = "deep_research"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder holds the worker's collectors on a private registry. A nil
// *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	llmTokens    *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolLatency  *prometheus.HistogramVec
	toolListings *prometheus.CounterVec
}

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Model calls by purpose, provider and outcome.",
		}, []string{"purpose", "provider", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Model call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"purpose", "provider"}),
		llmTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by purpose and kind (prompt, completion).",
		}, []string{"purpose", "kind"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "MCP tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_invocation_duration_seconds",
			Help:      "MCP tool invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		toolListings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_listings_total",
			Help:      "MCP tool listings by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.llmCalls, r.llmLatency, r.llmTokens,
		r.toolCalls, r.toolLatency, r.toolListings,
	)
	return r
}

// Registry returns the private registry, for tests and custom exporters.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveLLMCall records one model call.
func (r *Recorder) ObserveLLMCall(purpose, provider string, d time.Duration, usage models.TokenUsage, err error) {
	if r == nil {
		return
	}
	r.llmCalls.WithLabelValues(purpose, provider, outcome(err)).Inc()
	r.llmLatency.WithLabelValues(purpose, provider).Observe(d.Seconds())
	if err == nil {
		r.llmTokens.WithLabelValues(purpose, "prompt").Add(float64(usage.PromptTokens))
		r.llmTokens.WithLabelValues(purpose, "completion").Add(float64(usage.CompletionTokens))
	}
}

// ObserveToolCall records one tool invocation.
func (r *Recorder) ObserveToolCall(tool string, d time.Duration, err error) {
	if r == nil {
		return
	}
	r.toolCalls.WithLabelValues(tool, outcome(err)).Inc()
	r.toolLatency.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveToolListing records one tool listing.
func (r *Recorder) ObserveToolListing(err error) {
	if r == nil {
		return
	}
	r.toolListings.WithLabelValues(outcome(err)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics: shutdown: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
