package responder

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIResponder implements Responder on the OpenAI chat completions API
type OpenAIResponder struct {
	client    openai.Client
	model     string
	maxTokens int
	memory    *threadMemory
}

// NewOpenAIResponder creates a new OpenAI responder
func NewOpenAIResponder(apiKey, model string, maxTokens int) *OpenAIResponder {
	return &OpenAIResponder{
		client:    openai.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: maxTokens,
		memory:    newThreadMemory(),
	}
}

// Provider returns the provider name
func (r *OpenAIResponder) Provider() string {
	return "openai"
}

// Invoke generates a reply for the thread
func (r *OpenAIResponder) Invoke(ctx context.Context, in Input, opts Options) (Output, error) {
	turns := r.memory.turns(opts.ThreadID, in.Messages)

	// Convert messages to OpenAI format
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
	}
	for _, msg := range turns {
		switch msg.Role {
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(r.model),
		Messages: messages,
	}
	if r.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(r.maxTokens))
	}

	response, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Output{}, fmt.Errorf("openai call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Output{}, fmt.Errorf("openai returned no choices")
	}

	text := response.Choices[0].Message.Content
	r.memory.record(opts.ThreadID, in.Messages, text)
	return Output{Text: text}, nil
}
