package activities

import (
	"context"

	"go.temporal.io/sdk/activity"

	"github.com/mfateev/temporal-deep-research/internal/instructions"
)

// LoadWorkerGuidanceOutput is the output from the LoadWorkerGuidance activity.
type LoadWorkerGuidanceOutput struct {
	Guidance string `json:"guidance,omitempty"`
	Root     string `json:"root,omitempty"`
}

// GuidanceActivities loads research guidance from the worker's workspace,
// the directory the filesystem tools operate on.
type GuidanceActivities struct {
	workspace string
}

// NewGuidanceActivities creates a new GuidanceActivities instance.
func NewGuidanceActivities(workspace string) *GuidanceActivities {
	return &GuidanceActivities{workspace: workspace}
}

// LoadWorkerGuidance discovers RESEARCH.md files from the workspace's git
// root (or the workspace itself) down to the workspace. Failures are
// non-fatal and yield no guidance.
func (a *GuidanceActivities) LoadWorkerGuidance(ctx context.Context) (LoadWorkerGuidanceOutput, error) {
	if a.workspace == "" {
		return LoadWorkerGuidanceOutput{}, nil
	}

	root, err := instructions.FindGitRoot(a.workspace)
	if err != nil {
		return LoadWorkerGuidanceOutput{}, nil
	}
	if root == "" {
		root = a.workspace
	}

	guidance, err := instructions.LoadGuidance(root, a.workspace)
	if err != nil {
		activity.GetLogger(ctx).Warn("Failed to load worker guidance", "workspace", a.workspace, "error", err)
		return LoadWorkerGuidanceOutput{}, nil
	}
	return LoadWorkerGuidanceOutput{Guidance: guidance, Root: root}, nil
}
