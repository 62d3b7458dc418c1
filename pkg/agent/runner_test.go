package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikay/folio/pkg/runtime"
	"github.com/kartikay/folio/pkg/schedule"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

// scriptedProvider replays canned responses and records requests
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*LLMResponse
	errs      []error
	requests  []LLMRequest
}

func (p *scriptedProvider) Provider() string { return "scripted" }

func (p *scriptedProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, request)

	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	if len(p.responses) == 0 {
		return &LLMResponse{Content: "done"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []runtime.Task
}

func (f *fakeScheduler) Schedule(ctx context.Context, agentID string, when schedule.When, callback string, payload string) (*runtime.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task := runtime.Task{ID: "t-1", AgentID: agentID, Callback: callback, Payload: payload, Type: when.Kind()}
	f.tasks = append(f.tasks, task)
	return &task, nil
}

func (f *fakeScheduler) List(agentID string) []runtime.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []runtime.Task{}
	for _, task := range f.tasks {
		if task.AgentID == agentID {
			out = append(out, task)
		}
	}
	return out
}

func (f *fakeScheduler) Cancel(ctx context.Context, agentID string, id string) (bool, error) {
	return false, nil
}

func newTestExecutor(t *testing.T) (*toolexecutor.ToolExecutor, *int) {
	t.Helper()

	te := toolexecutor.New()
	resumeCalls := 0

	require.NoError(t, te.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "scheduleTask",
		Description: "Schedules a task",
		InputSchema: schedule.InputSchema(),
		Handler: func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
			when, description, err := schedule.ParseRequest(params)
			if err != nil {
				return nil, err
			}
			if _, err := execCtx.Agent.Schedule(ctx, when, runtime.ExecuteTaskCallback, description); err != nil {
				return nil, err
			}
			return "scheduled", nil
		},
	}))
	require.NoError(t, te.RegisterTool(toolexecutor.ToolDefinition{
		Name:        "getResume",
		Description: "Returns the resume",
	}))
	require.NoError(t, te.RegisterExecution("getResume", func(ctx context.Context, execCtx *toolexecutor.ExecutionContext, params map[string]interface{}) (interface{}, error) {
		resumeCalls++
		return "RESUME", nil
	}))

	return te, &resumeCalls
}

func newTestRunner(t *testing.T, provider LLMProvider, te *toolexecutor.ToolExecutor) *Runner {
	t.Helper()

	cfg := DefaultConfig()
	cfg.MaxIterations = 3
	runner, err := NewRunner(Config{
		Provider:     provider,
		ToolExecutor: te,
		Agent:        cfg,
		Logger:       zerolog.Nop(),
	})
	require.NoError(t, err)
	runner.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }
	return runner
}

func TestNewRunner_Validation(t *testing.T) {
	te := toolexecutor.New()

	_, err := NewRunner(Config{ToolExecutor: te, Agent: DefaultConfig()})
	assert.Error(t, err)

	_, err = NewRunner(Config{Provider: &scriptedProvider{}, Agent: DefaultConfig()})
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.Temperature = 2
	_, err = NewRunner(Config{Provider: &scriptedProvider{}, ToolExecutor: te, Agent: bad})
	assert.Error(t, err)

	bad = DefaultConfig()
	bad.Model = ""
	_, err = NewRunner(Config{Provider: &scriptedProvider{}, ToolExecutor: te, Agent: bad})
	assert.Error(t, err)
}

func TestRunner_Run_PlainAnswer(t *testing.T) {
	te, _ := newTestExecutor(t)
	provider := &scriptedProvider{responses: []*LLMResponse{
		{Content: "Hello!", Usage: &TokenUsage{InputTokens: 10, OutputTokens: 2}},
	}}
	runner := newTestRunner(t, provider, te)
	sess := NewSession("s-1", &fakeScheduler{})

	result, err := runner.Run(context.Background(), sess, "hi")

	require.NoError(t, err)
	assert.Equal(t, "Hello!", result.Response)
	assert.Equal(t, "s-1", result.SessionKey)
	assert.Equal(t, 10, result.Usage.InputTokens)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.NotEmpty(t, history[0].ID)
	assert.Equal(t, RoleAssistant, history[1].Role)

	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].SystemPrompt, "2026-03-04T10:00:00Z")
	assert.Len(t, provider.requests[0].Tools, 2)
}

func TestRunner_Run_ToolLoopSchedulesThroughSession(t *testing.T) {
	te, _ := newTestExecutor(t)
	scheduler := &fakeScheduler{}
	provider := &scriptedProvider{responses: []*LLMResponse{
		{ToolCalls: []ToolCall{{
			ID:   "call-1",
			Name: "scheduleTask",
			Parameters: map[string]interface{}{
				"description": "follow up",
				"when":        map[string]interface{}{"type": "delayed", "delayInSeconds": float64(30)},
			},
		}}},
		{Content: "Scheduled it."},
	}}
	runner := newTestRunner(t, provider, te)
	sess := NewSession("s-1", scheduler)

	result, err := runner.Run(context.Background(), sess, "remind me in 30 seconds")

	require.NoError(t, err)
	assert.Equal(t, "Scheduled it.", result.Response)
	require.Len(t, result.ToolCalls, 1)

	require.Len(t, scheduler.tasks, 1)
	assert.Equal(t, "s-1", scheduler.tasks[0].AgentID)
	assert.Equal(t, schedule.KindDelayed, scheduler.tasks[0].Type)

	history := sess.History()
	require.Len(t, history, 4)
	assert.Equal(t, RoleTool, history[2].Role)
	assert.Equal(t, "call-1", history[2].ToolCallID)
	assert.Equal(t, "scheduled", history[2].Content)

	// The second model call sees the tool result
	require.Len(t, provider.requests, 2)
	assert.Len(t, provider.requests[1].Messages, 3)
}

func TestRunner_Run_ConfirmationFlow(t *testing.T) {
	for _, tc := range []struct {
		name      string
		handler   toolexecutor.ApprovalHandler
		wantCalls int
		wantError bool
	}{
		{name: "approved", handler: toolexecutor.AutoApprovalHandler{}, wantCalls: 1},
		{name: "denied", handler: toolexecutor.DenyAllHandler{}, wantCalls: 0, wantError: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			te, calls := newTestExecutor(t)
			te.SetApprovalManager(toolexecutor.NewApprovalManager(tc.handler))
			provider := &scriptedProvider{responses: []*LLMResponse{
				{ToolCalls: []ToolCall{{ID: "call-1", Name: "getResume", Parameters: map[string]interface{}{}}}},
				{Content: "ok"},
			}}
			runner := newTestRunner(t, provider, te)
			sess := NewSession("s-1", nil)

			_, err := runner.Run(context.Background(), sess, "resume please")
			require.NoError(t, err)

			assert.Equal(t, tc.wantCalls, *calls)
			toolMsg := sess.History()[2]
			assert.Equal(t, tc.wantError, toolMsg.IsError)
			if !tc.wantError {
				assert.Equal(t, "RESUME", toolMsg.Content)
			}
		})
	}
}

func TestRunner_Run_MaxIterations(t *testing.T) {
	te, _ := newTestExecutor(t)
	loop := &LLMResponse{ToolCalls: []ToolCall{{ID: "c", Name: "missingTool"}}}
	provider := &scriptedProvider{responses: []*LLMResponse{loop, loop, loop, loop}}
	runner := newTestRunner(t, provider, te)

	_, err := runner.Run(context.Background(), NewSession("s-1", nil), "loop")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum tool execution turns exceeded")
}

func TestRunner_Run_PermanentErrorNotRetried(t *testing.T) {
	te, _ := newTestExecutor(t)
	provider := &scriptedProvider{errs: []error{errors.New("invalid api key")}}
	runner := newTestRunner(t, provider, te)

	_, err := runner.Run(context.Background(), NewSession("s-1", nil), "hi")

	require.Error(t, err)
	assert.Len(t, provider.requests, 1)
}

func TestRunner_Run_CanceledContext(t *testing.T) {
	te, _ := newTestExecutor(t)
	runner := newTestRunner(t, &scriptedProvider{}, te)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runner.Run(ctx, NewSession("s-1", nil), "hi")

	require.NoError(t, err)
	assert.True(t, result.Aborted)
}

func TestRunner_CompactIfNeeded(t *testing.T) {
	te, _ := newTestExecutor(t)
	runner := newTestRunner(t, &scriptedProvider{}, te)
	runner.config.MaxTokens = 10

	messages := []AgentMessage{}
	for i := 0; i < 30; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, AgentMessage{Role: role, Content: "some words here"})
	}

	compacted := runner.compactIfNeeded(messages)

	assert.LessOrEqual(t, len(compacted), 20)
	assert.Equal(t, RoleUser, compacted[0].Role)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.True(t, IsRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, IsRetryableError(errors.New("upstream returned 503")))
	assert.True(t, IsRetryableError(errors.New("Rate limit reached")))
	assert.False(t, IsRetryableError(errors.New("invalid request")))
}
