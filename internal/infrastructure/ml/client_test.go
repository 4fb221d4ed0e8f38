package ml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"KiddoNews/internal/config"
	"KiddoNews/internal/domain"
	"KiddoNews/internal/ports"
)

func testArticle() domain.RawArticle {
	return domain.NewRawArticle("a1", domain.Draft{
		Title:   "לוויין חדש",
		Content: "הלוויין שוגר הבוקר.",
		Summary: []string{"שיגור מוצלח"},
		Source:  "ynet",
	}, time.Date(2025, time.March, 10, 6, 0, 0, 0, time.UTC))
}

func TestSummarizePostsArticle(t *testing.T) {
	t.Parallel()

	var captured summarizeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, summarizePath, r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"summary":" לוויין שוגר לחלל ","ageRange":"9-12","analysis":{"relevance":0.7,"sentiment":"positive"}}`))
	}))
	defer server.Close()

	client := NewClient(config.MLConfig{Endpoint: server.URL + "/", APIKey: "secret"})
	got, err := client.Summarize(context.Background(), testArticle(), ports.SummarizeOptions{Instructions: "קצר יותר", TargetAgeRange: "8-12"})
	require.NoError(t, err)

	assert.Equal(t, "לוויין שוגר לחלל", got.Text)
	assert.Equal(t, "9-12", got.AgeRange)
	assert.Equal(t, "positive", got.Analysis.Sentiment)

	assert.Equal(t, "a1", captured.ID)
	assert.Equal(t, "לוויין חדש", captured.Title)
	assert.Equal(t, []string{"שיגור מוצלח"}, captured.Subtitle)
	assert.Equal(t, "קצר יותר", captured.Instructions)
	assert.Equal(t, "8-12", captured.TargetAgeRange)
}

func TestSummarizeMapsStatusCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusServiceUnavailable, domain.ErrServiceUnavailable},
		{http.StatusBadGateway, domain.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "busy", tt.status)
			}))
			defer server.Close()

			_, err := NewClient(config.MLConfig{Endpoint: server.URL}).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSummarizeBadRequestIsNotRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad payload", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := NewClient(config.MLConfig{Endpoint: server.URL}).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrRateLimited)
	assert.NotErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Contains(t, err.Error(), "bad payload")
}

func TestSummarizeRejectsEmptySummary(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"summary":"  "}`))
	}))
	defer server.Close()

	_, err := NewClient(config.MLConfig{Endpoint: server.URL}).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
	assert.ErrorContains(t, err, "empty summary")
}

func TestSummarizeUnreachableServiceIsUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(config.MLConfig{Endpoint: url, Timeout: time.Second}).Summarize(context.Background(), testArticle(), ports.SummarizeOptions{})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
