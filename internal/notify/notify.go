// Package notify delivers outbound email notifications.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To      string `json:"userEmail"`
	Subject string `json:"subject"`
	Body    string `json:"emailBody"`
}

// Sink sends messages. Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, msg Message) error
}

// HTTPRelaySink posts messages to an email relay endpoint.
type HTTPRelaySink struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRelaySink builds a sink posting to url.
func NewHTTPRelaySink(url string) *HTTPRelaySink {
	return &HTTPRelaySink{url: url, httpClient: &http.Client{}}
}

// Send posts the message as JSON and fails on any non-2xx answer.
func (s *HTTPRelaySink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// LogSink writes messages to the log instead of sending them.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a sink that only logs.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, msg Message) error {
	s.logger.Info("notification",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_len", len(msg.Body)))
	return nil
}
