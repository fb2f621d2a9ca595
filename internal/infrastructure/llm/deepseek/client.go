package deepseek

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chrisisia/traza-assistant/internal/core/domain"
	"github.com/chrisisia/traza-assistant/internal/infrastructure/resilience"
)

// Client talks to a DeepSeek endpoint through its OpenAI-compatible API.
type Client struct {
	client   *openai.Client
	model    string
	executor *resilience.Executor
}

type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Executor *resilience.Executor
}

func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return &Client{
		client:   openai.NewClientWithConfig(clientCfg),
		model:    cfg.Model,
		executor: cfg.Executor,
	}
}

// Complete sends one system plus one user message and returns the raw
// completion text. Callers own parsing and validation of the output.
func (c *Client) Complete(ctx context.Context, systemInstruction, userMessage string, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
	}

	var content string
	call := func(callCtx context.Context) error {
		resp, err := c.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("oracle.complete: %w: empty choices", domain.ErrMalformedOracleOutput)
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "oracle.complete", call, classifyOracleError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapUnavailableIfNeeded("oracle.complete", err)
	}
	return content, nil
}
