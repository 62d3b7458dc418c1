// Package coretools registers the tools the candidate agent exposes to the
// model: profile lookups and scheduled task management.
package coretools

import (
	"errors"
	"fmt"

	"github.com/kartikay/folio/pkg/profile"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

// Options configures core tool registration.
type Options struct {
	Profiles *profile.Store
}

// RegisterCoreTools registers the profile and scheduling tools, plus the
// execution of every confirmation-required tool.
func RegisterCoreTools(executor *toolexecutor.ToolExecutor, opts Options) error {
	if executor == nil {
		return errors.New("tool executor is required")
	}
	if opts.Profiles == nil {
		return errors.New("profile store is required")
	}

	tools := []toolexecutor.ToolDefinition{
		getInformationTool(opts),
		getExperienceTool(opts),
		getProjectsTool(opts),
		getResumeTool(),
		scheduleTaskTool(),
		getScheduledTasksTool(),
		cancelScheduledTaskTool(),
	}

	for _, tool := range tools {
		if err := executor.RegisterTool(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}

	for name, handler := range executions(opts) {
		if err := executor.RegisterExecution(name, handler); err != nil {
			return fmt.Errorf("failed to register execution %s: %w", name, err)
		}
	}

	return nil
}
