// Package ml talks to a self-hosted summarization service.
package ml

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

const summarizePath = "/summarize"

// Client posts articles to an external ML service and reads back the summary.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Summarizer = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.MLConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type summarizeRequest struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Subtitle       []string `json:"subtitle,omitempty"`
	Content        string   `json:"content"`
	Source         string   `json:"source"`
	Instructions   string   `json:"instructions,omitempty"`
	TargetAgeRange string   `json:"targetAgeRange,omitempty"`
}

type summarizeResponse struct {
	Summary  string          `json:"summary"`
	AgeRange string          `json:"ageRange"`
	Analysis domain.Analysis `json:"analysis"`
}

// Summarize requests a summary, an age range and an analysis for the article.
func (c *Client) Summarize(ctx context.Context, article domain.RawArticle, opts ports.SummarizeOptions) (ports.Summary, error) {
	if c.endpoint == "" {
		return ports.Summary{}, errors.New("ml client misconfigured")
	}

	payload := summarizeRequest{
		ID:             article.ID,
		Title:          article.Title,
		Subtitle:       article.Summary,
		Content:        article.Content,
		Source:         article.Source,
		Instructions:   opts.Instructions,
		TargetAgeRange: opts.TargetAgeRange,
	}

	var resp summarizeResponse
	if err := c.post(ctx, summarizePath, payload, &resp); err != nil {
		return ports.Summary{}, fmt.Errorf("summarize %s: %w", article.ID, err)
	}
	if strings.TrimSpace(resp.Summary) == "" {
		return ports.Summary{}, errors.New("ml service returned an empty summary")
	}

	ageRange := resp.AgeRange
	if ageRange == "" {
		ageRange = opts.TargetAgeRange
	}
	return ports.Summary{
		Text:     strings.TrimSpace(resp.Summary),
		AgeRange: ageRange,
		Analysis: resp.Analysis,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("ml service status %s: %s", resp.Status, strings.TrimSpace(string(detail)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, msg)
	default:
		return errors.New(msg)
	}
}
