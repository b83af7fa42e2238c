// Package openai adapts OpenAI chat models to the agent.Caller
// interface using the official openai-go SDK.
package openai

import (
	"context"
	"errors"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dshills/flowgraph-go/flow/agent"
)

// Caller invokes an OpenAI chat model. Safe for concurrent use; the SDK
// client is internally thread-safe.
type Caller struct {
	client *openai.Client
	model  string
}

// New builds a Caller for the given API key and model (for example
// "gpt-4o"). Both must be non-empty.
func New(apiKey, model string) (*Caller, error) {
	if apiKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Caller{client: &client, model: model}, nil
}

// Invoke implements agent.Caller. The view's slot preamble is sent as a
// leading system message; conversation roles map onto the chat roles.
func (c *Caller) Invoke(ctx context.Context, view agent.View) (agent.Result, error) {
	if err := ctx.Err(); err != nil {
		return agent.Result{}, err
	}

	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(view.Messages)+1)
	if preamble := view.SlotPreamble(); preamble != "" {
		msgs = append(msgs, openai.SystemMessage(preamble))
	}
	for _, m := range view.Messages {
		switch m.Role {
		case agent.RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case agent.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(c.model),
		Messages: msgs,
	})
	if err != nil {
		return agent.Result{}, err
	}
	if len(completion.Choices) == 0 {
		return agent.Result{}, errors.New("no response from OpenAI API")
	}
	return agent.Result{Text: completion.Choices[0].Message.Content}, nil
}
