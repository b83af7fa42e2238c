// Package anthropic adapts Claude models to the agent.Caller interface
// using the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/flowgraph-go/flow/agent"
)

// Caller invokes a Claude model. Safe for concurrent use after
// construction.
type Caller struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New builds a Caller for the given API key and model. maxTokens caps
// the reply length; values below 1 default to 4096.
func New(apiKey, model string, maxTokens int64) (*Caller, error) {
	if apiKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	if maxTokens < 1 {
		maxTokens = 4096
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &Caller{client: &client, model: model, maxTokens: maxTokens}, nil
}

// Invoke implements agent.Caller. The Anthropic API takes system text as
// a separate parameter, so system-role messages and the slot preamble
// are folded into it rather than the message array.
func (c *Caller) Invoke(ctx context.Context, view agent.View) (agent.Result, error) {
	if err := ctx.Err(); err != nil {
		return agent.Result{}, err
	}

	var system []string
	if preamble := view.SlotPreamble(); preamble != "" {
		system = append(system, preamble)
	}
	msgs := make([]anthropic.MessageParam, 0, len(view.Messages))
	for _, m := range view.Messages {
		switch m.Role {
		case agent.RoleSystem:
			system = append(system, m.Content)
		case agent.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock("Proceed.")))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return agent.Result{}, err
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return agent.Result{Text: sb.String()}, nil
}
