package server

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Responder produces the assistant's answer to one user turn. The dev
// server ships a canned echo responder and an optional Ark-backed one.
type Responder interface {
	Answer(ctx context.Context, history []Entry, userText string) (string, error)
}

// EchoResponder answers without any model, for fully offline development.
type EchoResponder struct{}

// Answer restates the user's text.
func (EchoResponder) Answer(_ context.Context, _ []Entry, userText string) (string, error) {
	return fmt.Sprintf("Alina (dev): you said %q", userText), nil
}

const systemPrompt = "You are Alina, a helpful voice assistant. Reply concisely; " +
	"assume the user is speaking to you via voice."

// historyLimit caps how many prior turns are fed to the model.
const historyLimit = 10

// ModelResponder answers through an eino prompt + chat model chain.
type ModelResponder struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewModelResponder compiles the answer chain over the given chat model.
func NewModelResponder(ctx context.Context, chatModel model.ChatModel) (*ModelResponder, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile answer chain: %w", err)
	}

	return &ModelResponder{chain: runnable}, nil
}

// Answer runs one turn through the chain.
func (r *ModelResponder) Answer(ctx context.Context, history []Entry, userText string) (string, error) {
	input := map[string]any{
		"system":  systemPrompt,
		"history": buildHistoryMessages(history),
		"query":   userText,
	}

	response, err := r.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("run answer chain: %w", err)
	}

	log.Printf("[assistant] generated answer length=%d", len(response.Content))
	return response.Content, nil
}

func buildHistoryMessages(history []Entry) []*schema.Message {
	if len(history) == 0 {
		return nil
	}

	startIdx := 0
	if len(history) > historyLimit {
		startIdx = len(history) - historyLimit
	}

	messages := make([]*schema.Message, 0, len(history)-startIdx)
	for _, entry := range history[startIdx:] {
		switch entry.Role {
		case "user":
			messages = append(messages, schema.UserMessage(entry.Content))
		case "assistant":
			messages = append(messages, schema.AssistantMessage(entry.Content, nil))
		}
	}

	return messages
}
