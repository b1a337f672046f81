package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/bft-labs/studykit/pkg/log"
)

const telemetryEndpoint = "/v1/telemetry"

// HTTPClient abstracts HTTP request execution. *http.Client satisfies it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPSinkConfig configures an HTTPSink.
type HTTPSinkConfig struct {
	// CollectorURL is the base URL of the collector, without trailing slash.
	CollectorURL string

	// ExperimentID is sent in the X-Study-Id header.
	ExperimentID string

	// Testing marks pings as testing pings.
	Testing bool
}

// HTTPSink posts payloads as JSON to a collector.
type HTTPSink struct {
	client HTTPClient
	cfg    HTTPSinkConfig
	logger log.Logger
}

// NewHTTPSink creates an HTTPSink.
func NewHTTPSink(client HTTPClient, cfg HTTPSinkConfig, logger log.Logger) *HTTPSink {
	cfg.CollectorURL = strings.TrimRight(cfg.CollectorURL, "/")
	return &HTTPSink{client: client, cfg: cfg, logger: log.OrNoop(logger)}
}

// Send implements Sink.
func (s *HTTPSink) Send(ctx context.Context, p Payload) error {
	err := s.send(ctx, p)
	if err != nil {
		s.logger.Debug("telemetry delivery failed", log.Err(err))
	}
	return err
}

func (s *HTTPSink) send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.CollectorURL+telemetryEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	req.Header.Set("X-Study-Id", s.cfg.ExperimentID)
	if s.cfg.Testing {
		req.Header.Set("X-Study-Testing", "1")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("collector returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// LogSink writes payloads to a logger instead of sending them.
type LogSink struct {
	logger log.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: log.OrNoop(logger)}
}

// Send implements Sink.
func (s *LogSink) Send(ctx context.Context, p Payload) error {
	s.logger.Info("telemetry", log.Any("payload", map[string]interface{}(p)))
	return nil
}
