package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jjyaz/dohars-world/internal/core/domain"
	"github.com/jjyaz/dohars-world/internal/infrastructure/resilience"
)

// Client speaks the OpenAI-compatible chat-completions and embeddings
// surface of the hosted gateway.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL, apiKey, embedModel string, exec *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		exec:       exec,
	}
}

type chatRequest struct {
	Model      string               `json:"model"`
	Messages   []domain.ChatMessage `json:"messages"`
	Tools      []toolDefinition     `json:"tools,omitempty"`
	ToolChoice any                  `json:"tool_choice,omitempty"`
}

type toolDefinition struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// reasoningFunction is the forced structured-output contract: the
// model must answer through this function on every planner turn.
var reasoningFunction = toolDefinition{
	Type: "function",
	Function: functionSpec{
		Name:        "agent_reasoning",
		Description: "Structured reasoning step with thought, plan, self-criticism and the next action",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"thought": map[string]any{
					"type":        "string",
					"description": "Current reasoning about the situation",
				},
				"plan": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Short list of next steps",
				},
				"criticism": map[string]any{
					"type":        "string",
					"description": "Constructive self-criticism",
				},
				"action": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{
							"type": "string",
							"enum": []string{"tool", "respond", "continue"},
						},
						"tool_name":  map[string]any{"type": "string"},
						"tool_input": map[string]any{"type": "object"},
						"message":    map[string]any{"type": "string"},
					},
					"required": []string{"type"},
				},
			},
			"required": []string{"thought", "action"},
		},
	},
}

// CompleteReasoning forces an agent_reasoning call and returns its
// raw arguments, or the assistant text when the model ignored the
// function discipline.
func (c *Client) CompleteReasoning(ctx context.Context, model string, messages []domain.ChatMessage) (*domain.CompletionResult, error) {
	request := chatRequest{
		Model:    model,
		Messages: messages,
		Tools:    []toolDefinition{reasoningFunction},
		ToolChoice: map[string]any{
			"type":     "function",
			"function": map[string]any{"name": "agent_reasoning"},
		},
	}

	var response chatResponse
	err := c.exec.Execute(ctx, "gateway_reasoning", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/chat/completions", request, &response, "reasoning")
	}, classifyGatewayError)
	if err != nil {
		return nil, mapGatewayError("gateway reasoning", err)
	}
	if len(response.Choices) == 0 {
		return nil, domain.WrapError(domain.ErrUpstream, "gateway reasoning", fmt.Errorf("no choices in response"))
	}

	message := response.Choices[0].Message
	for _, call := range message.ToolCalls {
		if call.Function.Name == "agent_reasoning" {
			return &domain.CompletionResult{
				HasFunctionCall:   true,
				FunctionName:      call.Function.Name,
				FunctionArguments: call.Function.Arguments,
			}, nil
		}
	}
	return &domain.CompletionResult{Content: strings.TrimSpace(message.Content)}, nil
}

// Complete returns a plain text completion.
func (c *Client) Complete(ctx context.Context, model string, messages []domain.ChatMessage) (string, error) {
	request := chatRequest{Model: model, Messages: messages}

	var response chatResponse
	err := c.exec.Execute(ctx, "gateway_complete", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/chat/completions", request, &response, "complete")
	}, classifyGatewayError)
	if err != nil {
		return "", mapGatewayError("gateway complete", err)
	}
	if len(response.Choices) == 0 {
		return "", domain.WrapError(domain.ErrUpstream, "gateway complete", fmt.Errorf("no choices in response"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	request := embeddingRequest{Model: c.embedModel, Input: []string{text}}

	var response embeddingResponse
	err := c.exec.Execute(ctx, "gateway_embed", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/embeddings", request, &response, "embed")
	}, classifyGatewayError)
	if err != nil {
		return nil, mapGatewayError("gateway embed", err)
	}
	if len(response.Data) == 0 {
		return nil, domain.WrapError(domain.ErrUpstream, "gateway embed", fmt.Errorf("empty embedding result"))
	}
	return response.Data[0].Embedding, nil
}
