package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/mfateev/temporal-deep-research/internal/metrics"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// ToolGateway lists and invokes external tools. *mcp.Gateway implements it;
// tests substitute fakes.
type ToolGateway interface {
	ListTools(ctx context.Context) ([]models.ToolDeclaration, error)
	Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// ListToolsOutput is the output from the ListTools activity.
type ListToolsOutput struct {
	Tools []models.ToolDeclaration `json:"tools"`
}

// InvokeToolInput is the input for the InvokeTool activity.
type InvokeToolInput struct {
	Name string `json:"name"`
	// Arguments is the raw JSON object produced by the model.
	Arguments string `json:"arguments"`
}

// InvokeToolOutput is the output from the InvokeTool activity.
// IsError is set when the tool ran and reported failure, or when the
// arguments could not be decoded; Content then holds the error text.
type InvokeToolOutput struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// McpActivities exposes the worker's tool gateway to workflows.
type McpActivities struct {
	gateway ToolGateway
	metrics *metrics.Recorder
}

// NewMcpActivities creates a new McpActivities instance.
func NewMcpActivities(gateway ToolGateway, rec *metrics.Recorder) *McpActivities {
	return &McpActivities{gateway: gateway, metrics: rec}
}

// ListTools returns every tool currently advertised by the gateway.
func (a *McpActivities) ListTools(ctx context.Context) (ListToolsOutput, error) {
	tools, err := a.gateway.ListTools(ctx)
	a.metrics.ObserveToolListing(err)
	if err != nil {
		return ListToolsOutput{}, fmt.Errorf("list tools: %w", err)
	}
	return ListToolsOutput{Tools: tools}, nil
}

// InvokeTool calls one tool by name.
//
// A name no server provides fails with a non-retryable application error of
// type models.AppErrorToolResolution. A tool that reports failure is not an
// activity error: its text comes back with IsError set. Any other error
// means the server could not serve the call.
func (a *McpActivities) InvokeTool(ctx context.Context, input InvokeToolInput) (InvokeToolOutput, error) {
	logger := activity.GetLogger(ctx)

	args, err := models.ToolCall{Name: input.Name, Arguments: input.Arguments}.ParseArguments()
	if err != nil {
		return InvokeToolOutput{
			Content: fmt.Sprintf("invalid arguments for %s: %v", input.Name, err),
			IsError: true,
		}, nil
	}

	start := time.Now()
	content, err := a.gateway.Invoke(ctx, input.Name, args)
	a.metrics.ObserveToolCall(input.Name, time.Since(start), err)
	if err == nil {
		return InvokeToolOutput{Content: content}, nil
	}

	var resolutionErr *models.ToolResolutionError
	if errors.As(err, &resolutionErr) {
		return InvokeToolOutput{}, temporal.NewNonRetryableApplicationError(
			resolutionErr.Error(), models.AppErrorToolResolution, err)
	}
	var execErr *models.ToolExecutionError
	if errors.As(err, &execErr) {
		logger.Info("Tool reported failure", "tool", input.Name, "error", execErr.Message)
		return InvokeToolOutput{Content: execErr.Message, IsError: true}, nil
	}
	logger.Warn("Tool invocation failed", "tool", input.Name, "error", err)
	return InvokeToolOutput{}, err
}
