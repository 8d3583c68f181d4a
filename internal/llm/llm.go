package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Client wraps the Anthropic API for tag suggestion.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildSuggestPrompt constructs the system and user prompts for tag suggestion.
func buildSuggestPrompt(summary, description string, available []string) (system string, user string) {
	system = `You label issue-tracker issues with tags. Given an issue and the list of available tag names, return ONLY a JSON array of the tag names that apply to this issue.

Rules:
- Choose tags ONLY from the available list, matching character for character
- Never invent, rename, or re-case a tag
- Prefer 1-4 tags; return [] when nothing fits
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	sb.WriteString("Available tags: ")
	sb.WriteString(strings.Join(available, ", "))
	sb.WriteString("\n\nIssue summary: ")
	sb.WriteString(summary)
	if description != "" {
		sb.WriteString("\n\nIssue description:\n")
		sb.WriteString(description)
	}
	user = sb.String()
	return
}

// filterKnown drops suggested names that are not in the available list and
// collapses duplicates, preserving suggestion order.
func filterKnown(names, available []string) []string {
	allowed := make(map[string]bool, len(available))
	for _, name := range available {
		allowed[name] = true
	}

	var out []string
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if allowed[name] && !seen[name] {
			out = append(out, name)
			seen[name] = true
		}
	}
	return out
}

// SuggestTags asks the model which of the available tags fit the issue.
// The result only ever contains names from the available list.
func (c *Client) SuggestTags(ctx context.Context, summary, description string, available []string) ([]string, error) {
	systemPrompt, userPrompt := buildSuggestPrompt(summary, description, available)

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	// Strip markdown fencing if present
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	var names []string
	if err := json.Unmarshal([]byte(text), &names); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return filterKnown(names, available), nil
}
