package responder

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// systemPrompt frames the assistant as a chat auto-responder.
const systemPrompt = "You are a helpful assistant answering chat messages on behalf of the account owner. Keep replies short and conversational."

// AnthropicResponder implements Responder on Anthropic Claude
type AnthropicResponder struct {
	client    anthropic.Client
	model     string
	maxTokens int
	memory    *threadMemory
}

// NewAnthropicResponder creates a new Anthropic responder
func NewAnthropicResponder(apiKey, model string, maxTokens int) *AnthropicResponder {
	return &AnthropicResponder{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		memory:    newThreadMemory(),
	}
}

// Provider returns the provider name
func (r *AnthropicResponder) Provider() string {
	return "anthropic"
}

// Invoke generates a reply for the thread
func (r *AnthropicResponder) Invoke(ctx context.Context, in Input, opts Options) (Output, error) {
	turns := r.memory.turns(opts.ThreadID, in.Messages)

	// Convert messages to Anthropic format
	anthropicMessages := []anthropic.MessageParam{}
	for _, msg := range turns {
		switch msg.Role {
		case RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		}
	}

	response, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		Messages:  anthropicMessages,
		MaxTokens: int64(r.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		return Output{}, fmt.Errorf("anthropic call failed: %w", err)
	}

	var text string
	for _, block := range response.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += b.Text
		}
	}

	r.memory.record(opts.ThreadID, in.Messages, text)
	return Output{Text: text}, nil
}
