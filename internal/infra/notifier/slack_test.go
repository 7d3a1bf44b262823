package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestSlackNotifier_buildBlockKitPayload(t *testing.T) {
	newNotifier := func() *SlackNotifier {
		return NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
			Timeout:    10 * time.Second,
		})
	}

	t.Run("TC-1: should build valid Block Kit payload with all fields", func(t *testing.T) {
		notifier := newNotifier()
		change := testChange()

		payload := notifier.buildBlockKitPayload(change)

		// Fallback text
		expectedFallback := "Test Target - content changed"
		if payload.Text != expectedFallback {
			t.Errorf("expected fallback=%q, got %q", expectedFallback, payload.Text)
		}

		// Should have section + context blocks
		if len(payload.Blocks) != 2 {
			t.Fatalf("expected 2 blocks, got %d", len(payload.Blocks))
		}

		sectionBlock := payload.Blocks[0]
		if sectionBlock.Type != "section" {
			t.Errorf("expected first block type=section, got %q", sectionBlock.Type)
		}
		if sectionBlock.Text == nil {
			t.Fatal("expected section block to have text")
		}
		if !strings.Contains(sectionBlock.Text.Text, change.Target.URL) {
			t.Errorf("expected section text to contain target URL, got %q", sectionBlock.Text.Text)
		}
		if !strings.Contains(sectionBlock.Text.Text, change.Target.Name) {
			t.Errorf("expected section text to contain target name, got %q", sectionBlock.Text.Text)
		}
		if !strings.Contains(sectionBlock.Text.Text, change.Excerpt) {
			t.Errorf("expected section text to contain excerpt, got %q", sectionBlock.Text.Text)
		}

		contextBlock := payload.Blocks[1]
		if contextBlock.Type != "context" {
			t.Errorf("expected second block type=context, got %q", contextBlock.Type)
		}
		if len(contextBlock.Elements) != 1 {
			t.Fatalf("expected 1 context element, got %d", len(contextBlock.Elements))
		}
		contextText := contextBlock.Elements[0].Text
		if !strings.Contains(contextText, change.Outcome) {
			t.Errorf("expected context text to contain outcome, got %q", contextText)
		}
		if !strings.Contains(contextText, shortHash(change.NewHash)) {
			t.Errorf("expected context text to contain short hash, got %q", contextText)
		}
		if !strings.Contains(contextText, change.DetectedAt.Format(time.RFC3339)) {
			t.Errorf("expected context text to contain timestamp, got %q", contextText)
		}
	})

	t.Run("TC-2: should truncate long excerpt to section limit", func(t *testing.T) {
		notifier := newNotifier()
		change := testChange()
		change.Excerpt = strings.Repeat("a", 5000)

		payload := notifier.buildBlockKitPayload(change)

		sectionText := payload.Blocks[0].Text.Text
		if len(sectionText) > maxSectionTextLength {
			t.Errorf("expected section text length <= %d, got %d", maxSectionTextLength, len(sectionText))
		}
		if !strings.HasSuffix(sectionText, slackTruncationSuffix) {
			t.Errorf("expected section text to end with %q", slackTruncationSuffix)
		}
	})

	t.Run("TC-3: should truncate long fallback text", func(t *testing.T) {
		notifier := newNotifier()
		change := testChange()
		change.Target.Name = strings.Repeat("x", 200)

		payload := notifier.buildBlockKitPayload(change)

		if len(payload.Text) > maxFallbackLength {
			t.Errorf("expected fallback length <= %d, got %d", maxFallbackLength, len(payload.Text))
		}
		if !strings.HasSuffix(payload.Text, slackTruncationSuffix) {
			t.Errorf("expected fallback to end with %q", slackTruncationSuffix)
		}
	})

	t.Run("TC-4: should use mrkdwn text objects", func(t *testing.T) {
		notifier := newNotifier()

		payload := notifier.buildBlockKitPayload(testChange())

		if payload.Blocks[0].Text.Type != "mrkdwn" {
			t.Errorf("expected section text type=mrkdwn, got %q", payload.Blocks[0].Text.Type)
		}
		if payload.Blocks[1].Elements[0].Type != "mrkdwn" {
			t.Errorf("expected context element type=mrkdwn, got %q", payload.Blocks[1].Elements[0].Type)
		}
	})
}

func TestSlackNotifier_sendWebhookRequest(t *testing.T) {
	t.Run("TC-1: should succeed with 200 OK response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected Content-Type=application/json, got %q", r.Header.Get("Content-Type"))
			}

			body, _ := io.ReadAll(r.Body)
			var payload SlackWebhookPayload
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Errorf("failed to parse request body: %v", err)
			}
			if payload.Text == "" {
				t.Error("expected fallback text to be set")
			}

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		err := notifier.sendWebhookRequest(context.Background(), testChange())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should handle 429 rate limit with Retry-After header", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		err := notifier.sendWebhookRequest(context.Background(), testChange())
		if err == nil {
			t.Fatal("expected rate limit error, got nil")
		}

		rateLimitErr, ok := err.(*RateLimitError)
		if !ok {
			t.Fatalf("expected RateLimitError, got %T", err)
		}

		if rateLimitErr.RetryAfter != 3*time.Second {
			t.Errorf("expected retry_after=3s, got %v", rateLimitErr.RetryAfter)
		}
	})

	t.Run("TC-3: should return ClientError for 4xx (non-retryable)", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("no_service"))
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		err := notifier.sendWebhookRequest(context.Background(), testChange())
		if err == nil {
			t.Fatal("expected client error, got nil")
		}

		clientErr, ok := err.(*ClientError)
		if !ok {
			t.Fatalf("expected ClientError, got %T", err)
		}

		if clientErr.StatusCode != http.StatusNotFound {
			t.Errorf("expected status code=%d, got %d", http.StatusNotFound, clientErr.StatusCode)
		}

		if isRetryableError(err) {
			t.Error("expected client error to be non-retryable")
		}
	})

	t.Run("TC-4: should return ServerError for 5xx (retryable)", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		err := notifier.sendWebhookRequest(context.Background(), testChange())
		if err == nil {
			t.Fatal("expected server error, got nil")
		}

		serverErr, ok := err.(*ServerError)
		if !ok {
			t.Fatalf("expected ServerError, got %T", err)
		}

		if serverErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("expected status code=%d, got %d", http.StatusServiceUnavailable, serverErr.StatusCode)
		}

		if !isRetryableError(err) {
			t.Error("expected server error to be retryable")
		}
	})
}

func TestSlackNotifier_sendWebhookRequestWithRetry(t *testing.T) {
	t.Run("TC-1: should succeed on first attempt (no retry)", func(t *testing.T) {
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		ctx := context.WithValue(context.Background(), requestIDKey, "slack-test-1")

		err := notifier.sendWebhookRequestWithRetry(ctx, testChange())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}

		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request, got %d", requestCount)
		}
	})

	t.Run("TC-2: should not retry 4xx client errors", func(t *testing.T) {
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusForbidden)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		ctx := context.WithValue(context.Background(), requestIDKey, "slack-test-2")

		err := notifier.sendWebhookRequestWithRetry(ctx, testChange())
		if err == nil {
			t.Fatal("expected error for 403, got nil")
		}

		if atomic.LoadInt32(&requestCount) != 1 {
			t.Errorf("expected 1 request (no retry for 4xx), got %d", requestCount)
		}
	})

	t.Run("TC-3: should handle context timeout during retry", func(t *testing.T) {
		requestCount := int32(0)
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&requestCount, 1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		ctx := context.WithValue(context.Background(), requestIDKey, "slack-test-3")
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		err := notifier.sendWebhookRequestWithRetry(ctx, testChange())
		if err == nil {
			t.Fatal("expected context timeout error, got nil")
		}

		if !strings.Contains(err.Error(), "context") {
			t.Errorf("expected context-related error, got %v", err)
		}
	})
}

func TestSlackNotifier_NotifyChange(t *testing.T) {
	t.Run("TC-1: should send successful notification end-to-end", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		err := notifier.NotifyChange(context.Background(), testChange())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("TC-2: should return error but not panic on failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		notifier := NewSlackNotifier(SlackConfig{
			Enabled:    true,
			WebhookURL: server.URL,
			Timeout:    10 * time.Second,
		})

		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("expected no panic, but got panic: %v", r)
				}
			}()
			err = notifier.NotifyChange(context.Background(), testChange())
		}()

		if err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestNewSlackNotifier(t *testing.T) {
	t.Run("should create Slack notifier with proper configuration", func(t *testing.T) {
		config := SlackConfig{
			Enabled:    true,
			WebhookURL: "https://hooks.slack.com/services/test",
			Timeout:    15 * time.Second,
		}

		notifier := NewSlackNotifier(config)

		if notifier == nil {
			t.Fatal("expected non-nil notifier")
		}
		if notifier.httpClient == nil {
			t.Error("expected http client to be initialized")
		}
		if notifier.httpClient.Timeout != config.Timeout {
			t.Errorf("expected timeout=%v, got %v", config.Timeout, notifier.httpClient.Timeout)
		}
		if notifier.rateLimiter == nil {
			t.Error("expected rate limiter to be initialized")
		}
	})
}
