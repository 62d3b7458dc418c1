package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to the OpenAI chat completions API
type OpenAIProvider struct {
	client openai.Client
}

func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	return &OpenAIProvider{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (p *OpenAIProvider) Provider() string { return "openai" }

// Call sends one turn of the conversation and returns the model reply
func (p *OpenAIProvider) Call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	messages, err := openAIMessages(request.SystemPrompt, request.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(request.Model),
		Messages: messages,
		Tools:    openAITools(request.Tools),
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(request.MaxTokens))
	}
	if request.Temperature > 0 {
		params.Temperature = openai.Float(request.Temperature)
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return fromOpenAICompletion(completion)
}

// openAIMessages maps the conversation onto chat completion messages. The
// system prompt leads; stored system messages are dropped.
func openAIMessages(systemPrompt string, history []AgentMessage) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}

	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(toolResultText(msg), msg.ToolCallID))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			calls, err := openAIToolCalls(msg.ToolCalls)
			if err != nil {
				return nil, err
			}
			reply := openai.ChatCompletionMessage{
				Role:      RoleAssistant,
				Content:   msg.Content,
				ToolCalls: calls,
			}
			out = append(out, reply.ToParam())
		}
	}
	return out, nil
}

// toolResultText marks failed tool results, which the API has no flag for
func toolResultText(msg AgentMessage) string {
	if msg.IsError && !strings.HasPrefix(msg.Content, "Error") {
		return "Error: " + msg.Content
	}
	return msg.Content
}

func openAIToolCalls(calls []ToolCall) ([]openai.ChatCompletionMessageToolCall, error) {
	out := make([]openai.ChatCompletionMessageToolCall, 0, len(calls))
	for _, call := range calls {
		args := call.Parameters
		if args == nil {
			args = map[string]interface{}{}
		}
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode arguments of %s: %w", call.Name, err)
		}
		out = append(out, openai.ChatCompletionMessageToolCall{
			ID:   call.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunction{
				Name:      call.Name,
				Arguments: string(encoded),
			},
		})
	}
	return out, nil
}

func openAITools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(spec.InputSchema),
			},
		})
	}
	return out
}

// fromOpenAICompletion reads the first choice. Empty argument strings are
// treated as a call without parameters.
func fromOpenAICompletion(completion *openai.ChatCompletion) (*LLMResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}
	reply := completion.Choices[0].Message

	resp := &LLMResponse{
		Content: reply.Content,
		Usage: &TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
		},
	}
	for _, call := range reply.ToolCalls {
		args := map[string]interface{}{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool %s: %w", call.Function.Name, err)
			}
		}
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:         call.ID,
			Name:       call.Function.Name,
			Parameters: args,
		})
	}
	return resp, nil
}
