package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kartikay/folio/internal/tracing"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

const defaultSystemPrompt = "You are a helpful assistant that answers questions about a job candidate. " +
	"Use the available tools to look up the candidate's information, experience, projects and resume. " +
	"You can also schedule, list and cancel tasks."

// RunObserver receives one notification per model run
type RunObserver interface {
	ObserveAgentRun(provider string, duration time.Duration, success bool)
}

// Runner drives the model through tool calls for a session
type Runner struct {
	provider     LLMProvider
	toolExecutor *toolexecutor.ToolExecutor
	config       AgentConfig
	toolPolicy   *toolexecutor.ToolPolicy
	observer     RunObserver
	logger       zerolog.Logger
	now          func() time.Time
}

// Config holds runner configuration
type Config struct {
	Provider     LLMProvider
	ToolExecutor *toolexecutor.ToolExecutor
	Agent        AgentConfig
	ToolPolicy   *toolexecutor.ToolPolicy
	Observer     RunObserver
	Logger       zerolog.Logger
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.ToolExecutor == nil {
		return nil, fmt.Errorf("tool executor is required")
	}
	if err := validateConfig(cfg.Agent); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	agentCfg := cfg.Agent
	if agentCfg.MaxIterations <= 0 {
		agentCfg.MaxIterations = 10
	}
	if agentCfg.MaxRetries <= 0 {
		agentCfg.MaxRetries = 3
	}

	return &Runner{
		provider:     cfg.Provider,
		toolExecutor: cfg.ToolExecutor,
		config:       agentCfg,
		toolPolicy:   cfg.ToolPolicy,
		observer:     cfg.Observer,
		logger:       cfg.Logger,
		now:          time.Now,
	}, nil
}

// validateConfig validates agent configuration
func validateConfig(config AgentConfig) error {
	if config.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	return nil
}

// Run appends prompt as a user turn and loops model calls and tool calls
// until the model answers without tools.
func (r *Runner) Run(ctx context.Context, sess *Session, prompt string) (AgentResult, error) {
	sess.runMu.Lock()
	defer sess.runMu.Unlock()

	if tracing.GetRunID(ctx) == "" {
		ctx = tracing.NewAgentRunContext(ctx, sess.ID())
	}
	ctx, span := tracing.StartSpan(ctx, "folio/agent", "agent.run",
		attribute.String("agent.id", sess.ID()),
		attribute.String("llm.provider", r.provider.Provider()),
	)

	logger := tracing.Logger(ctx, r.logger.With().Str("session_key", sess.ID()).Logger())
	start := time.Now()

	sess.Append(AgentMessage{Role: RoleUser, Content: prompt})

	result, err := r.executeWithTools(ctx, sess, logger)
	tracing.EndSpan(span, err)
	if r.observer != nil {
		r.observer.ObserveAgentRun(r.provider.Provider(), time.Since(start), err == nil)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Agent run failed")
		return AgentResult{}, err
	}

	result.SessionKey = sess.ID()
	return result, nil
}

// systemPrompt returns the configured prompt with the current date, which
// the model needs to turn relative times into schedule dates.
func (r *Runner) systemPrompt() string {
	base := r.config.SystemPrompt
	if base == "" {
		base = defaultSystemPrompt
	}
	now := r.now()
	return fmt.Sprintf("%s\n\nThe current date and time is %s (%s).",
		base, now.Format(time.RFC3339), now.Weekday())
}

// buildTools describes every registered tool to the model
func (r *Runner) buildTools() []ToolSpec {
	defs := r.toolExecutor.Definitions()
	tools := make([]ToolSpec, 0, len(defs))

	for _, def := range defs {
		if r.toolPolicy != nil && !r.toolPolicy.IsToolAllowed(def.Name) {
			continue
		}
		tools = append(tools, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: toolexecutor.SchemaFor(def),
		})
	}

	return tools
}

// compactIfNeeded keeps the most recent messages when the history grows
// past the token budget. It never starts the window on a tool result.
func (r *Runner) compactIfNeeded(messages []AgentMessage) []AgentMessage {
	maxTokens := r.config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	tokenCount := EstimateTokens(messages)
	const recentCount = 20
	if tokenCount <= maxTokens || len(messages) <= recentCount {
		return messages
	}

	cut := len(messages) - recentCount
	for cut < len(messages) && messages[cut].Role != RoleUser {
		cut++
	}
	if cut == len(messages) {
		return messages
	}

	r.logger.Info().
		Int("tokenCount", tokenCount).
		Int("maxTokens", maxTokens).
		Int("dropped", cut).
		Msg("Compacting context")

	return messages[cut:]
}

// executeWithTools handles the tool execution loop
func (r *Runner) executeWithTools(ctx context.Context, sess *Session, logger zerolog.Logger) (AgentResult, error) {
	tools := r.buildTools()
	systemPrompt := r.systemPrompt()
	allToolCalls := []ToolCall{}
	usage := &TokenUsage{}

	for turn := 0; turn < r.config.MaxIterations; turn++ {
		select {
		case <-ctx.Done():
			return AgentResult{Aborted: true, ToolCalls: allToolCalls, Usage: usage}, nil
		default:
		}

		messages := r.compactIfNeeded(sess.History())

		response, err := r.callLLMWithRetry(ctx, LLMRequest{
			Model:        r.config.Model,
			Messages:     messages,
			Tools:        tools,
			Temperature:  r.config.Temperature,
			MaxTokens:    r.config.MaxTokens,
			SystemPrompt: systemPrompt,
		}, logger)
		if err != nil {
			return AgentResult{}, err
		}
		usage.Add(response.Usage)

		sess.Append(AgentMessage{
			Role:      RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		// No tool calls - we're done
		if len(response.ToolCalls) == 0 {
			return AgentResult{
				Response:  response.Content,
				ToolCalls: allToolCalls,
				Usage:     usage,
			}, nil
		}

		for _, toolCall := range response.ToolCalls {
			result := r.executeTool(ctx, sess, toolCall)
			sess.Append(AgentMessage{
				Role:       RoleTool,
				Content:    toolexecutor.Render(result),
				ToolCallID: toolCall.ID,
				IsError:    !result.Success,
			})
		}

		allToolCalls = append(allToolCalls, response.ToolCalls...)
	}

	return AgentResult{}, fmt.Errorf("maximum tool execution turns exceeded (%d)", r.config.MaxIterations)
}

// executeTool runs one tool call. Confirmation-required tools go through
// the approval manager.
func (r *Runner) executeTool(ctx context.Context, sess *Session, call ToolCall) toolexecutor.ToolResult {
	execCtx := &toolexecutor.ExecutionContext{
		Agent:      sess,
		SessionKey: sess.ID(),
		Timeout:    r.config.ToolTimeout,
		ToolPolicy: r.toolPolicy,
	}

	result := r.toolExecutor.Execute(ctx, call.Name, call.Parameters, execCtx)
	if result.Failed(toolexecutor.ErrorKindConfirmationRequired) {
		r.logger.Debug().Str("tool", call.Name).Msg("Requesting confirmation")
		result = r.toolExecutor.ExecuteConfirmed(ctx, call.Name, call.Parameters, execCtx)
	}

	return result
}

// callLLMWithRetry calls LLM with exponential backoff retry
func (r *Runner) callLLMWithRetry(ctx context.Context, request LLMRequest, logger zerolog.Logger) (*LLMResponse, error) {
	maxRetries := r.config.MaxRetries
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := r.provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err

		// Don't retry on permanent errors
		if !IsRetryableError(err) {
			return nil, err
		}

		// Last attempt - don't wait
		if attempt == maxRetries-1 {
			break
		}

		// Exponential backoff: 1s, 2s, 4s
		delay := time.Duration(1<<attempt) * time.Second
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}
