package sanitize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/taskscope/taskscope/internal/log"
	"github.com/taskscope/taskscope/internal/metrics"
	"github.com/taskscope/taskscope/internal/model"
	"github.com/taskscope/taskscope/internal/sanitize"
)

// ServiceConfig is the configuration for the sanitize service.
type ServiceConfig struct {
	Sanitizer *sanitize.Sanitizer
	Metrics   metrics.Recorder
	Logger    log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Sanitizer == nil {
		c.Sanitizer = sanitize.Default
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Sanitize"})
	return nil
}

// Service sanitizes arbitrary debug payloads for display.
type Service struct {
	sanitizer *sanitize.Sanitizer
	metrics   metrics.Recorder
	logger    log.Logger
}

// NewService creates a new sanitize service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		sanitizer: cfg.Sanitizer,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}, nil
}

// Request represents the sanitize request parameters.
type Request struct {
	// Data is a JSON or YAML encoded payload.
	Data []byte
}

// Result is the sanitized payload.
type Result struct {
	Value  any
	Pretty string
	Report sanitize.Report
}

// Run decodes the payload and sanitizes it.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	payload, err := decode(req.Data)
	if err != nil {
		return nil, fmt.Errorf("could not decode payload: %w: %w", model.ErrNotValid, err)
	}

	clean, report := s.sanitizer.SanitizeReport(payload)
	s.metrics.PayloadSanitized(report)
	s.logger.Debugf("Sanitized payload: %d masked, %d circular, %d truncated", report.Masked, report.Circular, report.Truncated)

	return &Result{
		Value:  clean,
		Pretty: sanitize.SafePrettyJSON(clean),
		Report: report,
	}, nil
}

func decode(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty payload")
	}

	if json.Valid(data) {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
