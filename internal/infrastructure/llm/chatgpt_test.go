package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KiddoNews/internal/config"
	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

var nowForTest = time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC)

func testArticle() domain.RawArticle {
	return domain.NewRawArticle("a1", domain.Draft{
		Title:   "לוויין חדש",
		Content: "הלוויין שוגר הבוקר.",
		Summary: []string{"שיגור מוצלח"},
	}, nowForTest)
}

func newClient(url string) *ChatGPTClient {
	return NewChatGPTClient(config.ChatGPTConfig{Endpoint: url, Model: "gpt-test", APIKey: "key"})
}

func TestSummarizeParsesJSONContent(t *testing.T) {
	t.Parallel()

	var captured chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		content := `{"summary":"לוויין עף לחלל","ageRange":"8-10","analysis":{"relevance":0.9,"sentiment":"positive","keyPhrases":["חלל"]}}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer server.Close()

	summary, err := newClient(server.URL).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{
		Instructions:   "פשט יותר",
		TargetAgeRange: "8-10",
	})
	require.NoError(t, err)

	assert.Equal(t, "לוויין עף לחלל", summary.Text)
	assert.Equal(t, "8-10", summary.AgeRange)
	assert.InDelta(t, 0.9, summary.Analysis.Relevance, 1e-9)

	assert.Equal(t, "gpt-test", captured.Model)
	require.Len(t, captured.Messages, 2)
	assert.True(t, strings.Contains(captured.Messages[1].Content, "פשט יותר"))
	assert.True(t, strings.Contains(captured.Messages[1].Content, "לוויין חדש"))
	assert.Equal(t, "json_object", captured.ResponseFormat["type"])
}

func TestSummarizeMapsStatusCodes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusServiceUnavailable, domain.ErrServiceUnavailable},
		{http.StatusBadGateway, domain.ErrServiceUnavailable},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "slow down", tc.status)
		}))
		_, err := newClient(server.URL).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
		server.Close()
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
	}
}

func TestSummarizeClientErrorIsNotRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad model", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newClient(server.URL).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.NotErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestSummarizeMisconfigured(t *testing.T) {
	t.Parallel()

	_, err := NewChatGPTClient(config.ChatGPTConfig{}).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
	assert.Error(t, err)
}

func TestStubSummarizer(t *testing.T) {
	t.Parallel()

	summary, err := StubSummarizer{}.Summarize(context.Background(), testArticle(), ports.SummarizeOptions{TargetAgeRange: "6-8"})
	require.NoError(t, err)
	assert.Equal(t, "שיגור מוצלח", summary.Text)
	assert.Equal(t, "6-8", summary.AgeRange)

	long := testArticle()
	long.Summary = nil
	long.Content = strings.Repeat("א", 500)
	summary, err = StubSummarizer{}.Summarize(context.Background(), long, ports.SummarizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, stubSummaryRunes+1, len([]rune(summary.Text)))
}
