package coretools

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kartikay/folio/pkg/toolexecutor"
)

var nameParameter = []toolexecutor.ToolParameter{
	{Name: "name", Type: "string", Description: "Name of the candidate", Required: true},
}

func getInformationTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "getInformation",
		Description: "get personal information",
		Parameters:  nameParameter,
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			log.Debug().Msg("Fetching personal information")
			return opts.Profiles.Get().Information(), nil
		},
	}
}

func getExperienceTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "getExperience",
		Description: "get the experience for the candidate",
		Parameters:  nameParameter,
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			name, _ := params["name"].(string)
			log.Debug().Str("name", name).Msg("Getting experience")
			return opts.Profiles.Get().ExperienceText(), nil
		},
	}
}

func getProjectsTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "getProjects",
		Description: "get the projects for the candidate",
		Parameters:  nameParameter,
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			name, _ := params["name"].(string)
			log.Debug().Str("name", name).Msg("Getting projects")
			return opts.Profiles.Get().ProjectsText(), nil
		},
	}
}

// getResumeTool has no handler, so the model can only obtain the resume
// after a human confirms the call.
func getResumeTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "getResume",
		Description: "get the full resume of the candidate",
		Parameters:  nameParameter,
	}
}

// executions holds the implementations of confirmation-required tools
func executions(opts Options) map[string]toolexecutor.ToolHandler {
	return map[string]toolexecutor.ToolHandler{
		"getResume": func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			name, _ := params["name"].(string)
			log.Debug().Str("name", name).Msg("Getting resume")
			return opts.Profiles.Get().Resume(), nil
		},
	}
}
