// Worker executable for temporal-deep-research
//
// This starts a Temporal worker that executes the research workflows and
// the LLM, MCP and guidance activities.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/worker"

	"github.com/mfateev/temporal-deep-research/internal/activities"
	"github.com/mfateev/temporal-deep-research/internal/config"
	"github.com/mfateev/temporal-deep-research/internal/llm"
	"github.com/mfateev/temporal-deep-research/internal/logging"
	"github.com/mfateev/temporal-deep-research/internal/mcp"
	"github.com/mfateev/temporal-deep-research/internal/metrics"
	"github.com/mfateev/temporal-deep-research/internal/models"
	"github.com/mfateev/temporal-deep-research/internal/temporalclient"
	"github.com/mfateev/temporal-deep-research/internal/version"
	"github.com/mfateev/temporal-deep-research/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log.Level)

	// Exit only after run's deferred cleanup has stopped the MCP servers.
	if err := run(cfg, logger); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	creds := cfg.Credentials()
	if creds.OpenAIAPIKey == "" && creds.AnthropicAPIKey == "" {
		logger.Warn("no LLM provider API key set; only local models will work",
			"env", "OPENAI_API_KEY, ANTHROPIC_API_KEY")
	}
	if creds.OpenAIAPIKey != "" {
		logger.Info("OpenAI provider available")
	}
	if creds.AnthropicAPIKey != "" {
		logger.Info("Anthropic provider available")
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	servers, err := cfg.Servers(cwd)
	if err != nil {
		return fmt.Errorf("invalid MCP server configuration: %w", err)
	}

	c, opts, err := temporalclient.Dial(temporalclient.Overrides{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.Temporal(logger),
	})
	if err != nil {
		return fmt.Errorf("create Temporal client: %w", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec := metrics.New()
	if cfg.Metrics.Address != "" {
		go func() {
			if err := rec.Serve(ctx, cfg.Metrics.Address); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
		logger.Info("serving metrics", "address", cfg.Metrics.Address)
	}

	gateway := mcp.NewGateway(servers)
	defer gateway.Close()
	logger.Info("MCP servers configured", "servers", gateway.ServerNames())

	taskQueue := cfg.TaskQueue()
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(workflow.DeepResearchWorkflow)
	w.RegisterWorkflow(workflow.ResearchThreadWorkflow)

	llmActivities := activities.NewLLMActivities(llm.NewMultiProviderClient(creds), models.NewDefaultRegistry(), rec)
	w.RegisterActivity(llmActivities.ExecuteLLMCall)

	mcpActivities := activities.NewMcpActivities(gateway, rec)
	w.RegisterActivity(mcpActivities.ListTools)
	w.RegisterActivity(mcpActivities.InvokeTool)

	guidanceActivities := activities.NewGuidanceActivities(cwd)
	w.RegisterActivity(guidanceActivities.LoadWorkerGuidance)

	logger.Info("starting worker",
		"version", version.String(),
		"task_queue", taskQueue,
		"temporal", opts.HostPort,
		"namespace", opts.Namespace)

	return w.Run(interruptCh(ctx))
}

// interruptCh adapts ctx to the channel worker.Run stops on.
func interruptCh(ctx context.Context) <-chan interface{} {
	ch := make(chan interface{}, 1)
	go func() {
		<-ctx.Done()
		ch <- struct{}{}
	}()
	return ch
}
