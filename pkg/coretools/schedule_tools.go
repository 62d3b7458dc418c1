package coretools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

// NoAgentMessage is returned when a scheduling tool runs outside an agent
const NoAgentMessage = "No active agent is available to manage scheduled tasks."

// NoTasksMessage is returned when the agent has nothing scheduled
const NoTasksMessage = "No scheduled tasks found."

// invalidScheduleMessage is returned for a "no-schedule" request
const invalidScheduleMessage = "Not a valid schedule input"

// scheduleInput extracts the value a request is scheduled by
type scheduleInput struct {
	value       string
	schedulable bool
}

func (s *scheduleInput) VisitNoSchedule(schedule.NoSchedule) {
	s.schedulable = false
}

func (s *scheduleInput) VisitScheduled(w schedule.Scheduled) {
	s.value, s.schedulable = schedule.Describe(w), true
}

func (s *scheduleInput) VisitDelayed(w schedule.Delayed) {
	s.value, s.schedulable = schedule.Describe(w), true
}

func (s *scheduleInput) VisitCron(w schedule.Cron) {
	s.value, s.schedulable = schedule.Describe(w), true
}

func requireAgent(execCtx *toolexecutor.ExecutionContext) (runtime.Agent, error) {
	if execCtx == nil || execCtx.Agent == nil {
		return nil, toolexecutor.NewToolError(toolexecutor.ErrorKindMissingAgentContext, nil, NoAgentMessage)
	}
	return execCtx.Agent, nil
}

func scheduleTaskTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "scheduleTask",
		Description: "A tool to schedule a task to be executed at a later time",
		InputSchema: schedule.InputSchema(),
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			when, description, err := schedule.ParseRequest(params)
			if err != nil {
				return nil, toolexecutor.NewToolError(toolexecutor.ErrorKindSchemaMismatch, err, "%v", err)
			}

			input := &scheduleInput{}
			when.Accept(input)
			if !input.schedulable {
				return invalidScheduleMessage, nil
			}

			agent, err := requireAgent(execCtx)
			if err != nil {
				return nil, err
			}

			if _, err := agent.Schedule(ctx, when, runtime.ExecuteTaskCallback, description); err != nil {
				log.Error().Err(err).Str("agent_id", agent.ID()).Msg("Error scheduling task")
				return nil, toolexecutor.NewToolError(toolexecutor.ErrorKindSchedulingFailure, err,
					"Error scheduling task: %v", err)
			}

			return fmt.Sprintf("Task scheduled for type %q : %s", string(when.Kind()), input.value), nil
		},
	}
}

func getScheduledTasksTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "getScheduledTasks",
		Description: "List all tasks that have been scheduled",
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			agent, err := requireAgent(execCtx)
			if err != nil {
				return nil, err
			}

			tasks, err := agent.GetSchedules(ctx)
			if err != nil {
				log.Error().Err(err).Str("agent_id", agent.ID()).Msg("Error listing scheduled tasks")
				return nil, toolexecutor.NewToolError(toolexecutor.ErrorKindSchedulingFailure, err,
					"Error listing scheduled tasks: %v", err)
			}
			if len(tasks) == 0 {
				return NoTasksMessage, nil
			}

			return tasks, nil
		},
	}
}

func cancelScheduledTaskTool() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "cancelScheduledTask",
		Description: "Cancel a scheduled task using its ID",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "taskId", Type: "string", Description: "The ID of the task to cancel", Required: true},
		},
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			taskID, _ := params["taskId"].(string)

			agent, err := requireAgent(execCtx)
			if err != nil {
				return nil, err
			}

			canceled, err := agent.CancelSchedule(ctx, taskID)
			if err == nil && !canceled {
				err = runtime.ErrTaskNotFound
			}
			if err != nil {
				log.Error().Err(err).Str("taskId", taskID).Msg("Error canceling task")
				return nil, toolexecutor.NewToolError(toolexecutor.ErrorKindSchedulingFailure, err,
					"Error canceling task %s: %v", taskID, err)
			}

			return fmt.Sprintf("Task %s has been successfully canceled.", taskID), nil
		},
	}
}
