// Package openai adapts an OpenAI-compatible API as an alternative
// generation and embedding backend. Any server speaking the chat
// completions protocol works by overriding the base URL.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = string(gopenai.SmallEmbedding3)
)

type Options struct {
	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	BaseURL    string
	ChatModel  string
	EmbedModel string
	// Limiter throttles outbound model calls. Nil disables throttling.
	Limiter *rate.Limiter
}

type Client struct {
	api        *gopenai.Client
	chatModel  string
	embedModel string
	limiter    *rate.Limiter
}

func New(apiKey string, opts Options) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("openai api key is required")
	}
	cfg := gopenai.DefaultConfig(apiKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	chatModel := opts.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embedModel := opts.EmbedModel
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}
	return &Client{
		api:        gopenai.NewClientWithConfig(cfg),
		chatModel:  chatModel,
		embedModel: embedModel,
		limiter:    opts.Limiter,
	}, nil
}

func (c *Client) wait(ctx context.Context, operation string) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", operation, err)
	}
	return nil
}

func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.wait(ctx, "embed"); err != nil {
		return nil, err
	}

	resp, err := c.api.CreateEmbeddings(ctx, gopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: gopenai.EmbeddingModel(c.embedModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings/texts mismatch: %d/%d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vectors[i] = item.Embedding
	}
	return vectors, nil
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) Generate(ctx context.Context, prompt, system string) (string, error) {
	if err := c.wait(ctx, "generate"); err != nil {
		return "", err
	}

	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: chatMessages(prompt, system),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai generate: no completion choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) GenerateStream(ctx context.Context, prompt, system string, emit func(chunk string) error) error {
	if err := c.wait(ctx, "generate stream"); err != nil {
		return err
	}

	stream, err := c.api.CreateChatCompletionStream(ctx, gopenai.ChatCompletionRequest{
		Model:    c.chatModel,
		Messages: chatMessages(prompt, system),
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("openai generate stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := emit(delta); err != nil {
			return fmt.Errorf("emit stream chunk: %w", err)
		}
	}
}

func chatMessages(prompt, system string) []gopenai.ChatCompletionMessage {
	messages := make([]gopenai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, gopenai.ChatCompletionMessage{
			Role:    gopenai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	return append(messages, gopenai.ChatCompletionMessage{
		Role:    gopenai.ChatMessageRoleUser,
		Content: prompt,
	})
}
