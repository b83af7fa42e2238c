// Package google adapts Gemini models to the agent.Caller interface
// using the generative-ai-go SDK.
package google

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/flowgraph-go/flow/agent"
)

// Caller invokes a Gemini model. The genai client holds a gRPC
// connection; call Close when done with it.
type Caller struct {
	client *genai.Client
	model  string
}

// New builds a Caller for the given API key and model (for example
// "gemini-1.5-pro").
func New(ctx context.Context, apiKey, model string) (*Caller, error) {
	if apiKey == "" {
		return nil, errors.New("API key cannot be empty")
	}
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Caller{client: client, model: model}, nil
}

// Invoke implements agent.Caller. System messages and the slot preamble
// become the model's system instruction; the rest of the conversation is
// flattened into a single prompt, since the workflow keeps its own
// history and does not need server-side chat sessions.
func (c *Caller) Invoke(ctx context.Context, view agent.View) (agent.Result, error) {
	if err := ctx.Err(); err != nil {
		return agent.Result{}, err
	}

	model := c.client.GenerativeModel(c.model)

	var system []string
	if preamble := view.SlotPreamble(); preamble != "" {
		system = append(system, preamble)
	}
	var prompt strings.Builder
	for _, m := range view.Messages {
		if m.Role == agent.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		prompt.WriteString(m.Role)
		prompt.WriteString(": ")
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))},
		}
	}
	if prompt.Len() == 0 {
		prompt.WriteString("Proceed.")
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		return agent.Result{}, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return agent.Result{}, errors.New("no response from Gemini API")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return agent.Result{Text: sb.String()}, nil
}

// Close releases the underlying client connection.
func (c *Caller) Close() error {
	return c.client.Close()
}
