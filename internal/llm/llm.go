package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// NoticeInput describes the round an author notice is drafted for.
type NoticeInput struct {
	SubmissionTitle string
	AuthorName      string
	Stage           string
	Round           int
	Status          string
	StatusText      string // author-facing label text
	Assignments     int
	Completed       int
}

// Client wraps the Anthropic API for drafting editorial correspondence.
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

// buildNoticePrompt constructs the system and user prompts for an author notice.
func buildNoticePrompt(in NoticeInput) (system string, user string) {
	system = `You draft short status notices from a journal editor to the author of a manuscript under peer review.

Rules:
- Address the author by name when one is given, otherwise "Dear Author"
- State the current review status in plain language, using the status text provided
- Never reveal reviewer identities, reviewer counts beyond what is given, or any decision that has not been made
- If revisions were requested, ask the author to upload revised files for the same round
- Keep it under 150 words, no subject line, no markdown
- Sign off as "The Editorial Office"`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Manuscript: %s\n", in.SubmissionTitle)
	if in.AuthorName != "" {
		fmt.Fprintf(&sb, "Author: %s\n", in.AuthorName)
	}
	fmt.Fprintf(&sb, "Review stage: %s, round %d\n", in.Stage, in.Round)
	fmt.Fprintf(&sb, "Status: %s (%s)\n", in.StatusText, in.Status)
	if in.Assignments > 0 {
		fmt.Fprintf(&sb, "Reviews completed: %d of %d\n", in.Completed, in.Assignments)
	}
	sb.WriteString("\nDraft the notice.")
	user = sb.String()
	return
}

// DraftNotice asks the model for an author-facing notice about the round's status.
func (c *Client) DraftNotice(ctx context.Context, in NoticeInput) (string, error) {
	systemPrompt, userPrompt := buildNoticePrompt(in)

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
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}
