package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"KiddoNews/internal/config"
	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

const maxPromptContent = 12000

// ChatGPTClient implements ports.Summarizer backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.Summarizer = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type summaryPayload struct {
	Summary  string          `json:"summary"`
	AgeRange string          `json:"ageRange"`
	Analysis domain.Analysis `json:"analysis"`
}

// Summarize asks the model for a child-friendly summary, an age range and an analysis.
func (c *ChatGPTClient) Summarize(ctx context.Context, article domain.RawArticle, opts ports.SummarizeOptions) (ports.Summary, error) {
	if c == nil {
		return ports.Summary{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return ports.Summary{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: buildPrompt(article, opts)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return ports.Summary{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.Summary{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ports.Summary{}, fmt.Errorf("summarize %s: %w", article.ID, ctx.Err())
		}
		return ports.Summary{}, fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return ports.Summary{}, err
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Summary{}, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ports.Summary{}, errors.New("chatgpt response has no choices")
	}

	var payload summaryPayload
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return ports.Summary{}, fmt.Errorf("decode summary json: %w", err)
	}
	if strings.TrimSpace(payload.Summary) == "" {
		return ports.Summary{}, errors.New("chatgpt returned an empty summary")
	}

	return ports.Summary{
		Text:     strings.TrimSpace(payload.Summary),
		AgeRange: payload.AgeRange,
		Analysis: payload.Analysis,
	}, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	detail := fmt.Sprintf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, detail)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, detail)
	default:
		return errors.New(detail)
	}
}

func buildPrompt(article domain.RawArticle, opts ports.SummarizeOptions) string {
	var b strings.Builder
	b.WriteString("Return JSON with keys summary, ageRange and analysis ")
	b.WriteString("(relevance 0..1, sentiment, keyPhrases, entities, summarySentences). ")
	b.WriteString("Write the summary in simple Hebrew.\n")
	if opts.TargetAgeRange != "" {
		fmt.Fprintf(&b, "Target age range: %s.\n", opts.TargetAgeRange)
	}
	if opts.Instructions != "" {
		fmt.Fprintf(&b, "Editor instructions: %s\n", opts.Instructions)
	}

	fmt.Fprintf(&b, "\nTitle: %s\n", article.Title)
	if len(article.Summary) > 0 {
		fmt.Fprintf(&b, "Subtitle: %s\n", strings.Join(article.Summary, " "))
	}
	if article.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", article.Category)
	}

	content := article.Content
	if r := []rune(content); len(r) > maxPromptContent {
		content = string(r[:maxPromptContent])
	}
	fmt.Fprintf(&b, "\n%s", content)
	return b.String()
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "You rewrite news articles for children."
	}
	return prompt
}
