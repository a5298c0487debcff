package instructions

import (
	"os"
	"strings"
)

// MergeInput collects the guidance sources for one run.
type MergeInput struct {
	// WorkerGuidance is the RESEARCH.md content found in the worker's
	// workspace. Takes precedence over ProjectGuidance.
	WorkerGuidance string `json:"worker_guidance,omitempty"`

	// ProjectGuidance is the RESEARCH.md content discovered from the
	// client's working directory. Used when the worker has none.
	ProjectGuidance string `json:"project_guidance,omitempty"`

	// PersonalGuidance holds user preferences from the guidance file in the
	// user config directory. Always appended if non-empty.
	PersonalGuidance string `json:"personal_guidance,omitempty"`

	// Override replaces both sources when non-empty (the --guidance flag).
	Override string `json:"override,omitempty"`
}

// MergeGuidance combines the guidance sources into the text handed to the
// supervisor and report prompts.
func MergeGuidance(input MergeInput) string {
	if s := strings.TrimSpace(input.Override); s != "" {
		return s
	}
	var parts []string
	project := strings.TrimSpace(input.WorkerGuidance)
	if project == "" {
		project = strings.TrimSpace(input.ProjectGuidance)
	}
	if project != "" {
		parts = append(parts, project)
	}
	if s := strings.TrimSpace(input.PersonalGuidance); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, "\n\n")
}

// ReadPersonalGuidance reads the personal guidance file at path. A missing
// file yields an empty string.
func ReadPersonalGuidance(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
