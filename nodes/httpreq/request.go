package httpreq

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

	"github.com/sirupsen/logrus"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/internal/utils"
)

var log = logrus.WithField("prefix", "httpreq")

// ErrRetryExhausted is returned after every attempt of a request failed.
var ErrRetryExhausted = errors.New("retries exhausted")

// ErrInvalidURL is returned for request URLs without an http or https scheme.
// It is never retried.
var ErrInvalidURL = errors.New("invalid url")

// RequestProcessor performs one HTTP method with retries. The event data must
// be a map carrying "url" and, for body-bearing methods, an optional "data"
// value that is JSON-encoded.
type RequestProcessor struct {
	method string
	config Config
	client *http.Client
}

var _ engine.Processor = (*RequestProcessor)(nil)

// NewRequestProcessor creates a processor for the given HTTP method.
func NewRequestProcessor(method string, config Config) *RequestProcessor {
	config.applyDefaults()
	return &RequestProcessor{
		method: method,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// CanHandle accepts data-change events, the conventional trigger for
// outbound requests.
func (processor *RequestProcessor) CanHandle(event *engine.Event) bool {
	return event.Type == engine.EventDataChange
}

// Process performs the request with up to MaxRetries attempts. Transport
// failures are retried after RetryDelay; a completed response of any status
// code is a success. Validation failures are returned immediately.
func (processor *RequestProcessor) Process(ctx context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	data := event.DataMap()
	url, _ := data["url"].(string)
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, url)
	}

	body, err := processor.encodeBody(data["data"])
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= processor.config.MaxRetries; attempt++ {
		response, err := processor.attempt(ctx, url, body)
		if err == nil {
			content, err := decodeResponse(response)
			if err != nil {
				return nil, fmt.Errorf("decoding response: %w", err)
			}
			return engine.NewEventWithMetadata(engine.EventComputationResult, map[string]any{
				"content": content,
				"status":  response.StatusCode,
			}, map[string]any{
				"status":  "success",
				"method":  processor.method,
				"attempt": attempt,
			}), nil
		}

		lastErr = err
		log.WithError(err).WithFields(logrus.Fields{
			"method":  processor.method,
			"url":     url,
			"attempt": attempt,
		}).Warn("request attempt failed")

		if attempt < processor.config.MaxRetries {
			if err := sleepContext(ctx, processor.config.RetryDelay); err != nil {
				return nil, err
			}
		}
	}

	return nil, fmt.Errorf("%w: %s %s after %d attempts: %v",
		ErrRetryExhausted, processor.method, url, processor.config.MaxRetries, lastErr)
}

func (processor *RequestProcessor) encodeBody(payload any) ([]byte, error) {
	if payload == nil || processor.method == http.MethodGet || processor.method == http.MethodDelete {
		return nil, nil
	}
	return json.Marshal(payload)
}

func (processor *RequestProcessor) attempt(ctx context.Context, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, processor.method, url, reader)
	if err != nil {
		return nil, err
	}
	for key, value := range processor.config.Headers {
		request.Header.Set(key, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	return processor.client.Do(request)
}

// decodeResponse reads the body and decodes it by Content-Type: JSON
// documents become structured values, text types become strings, everything
// else stays raw bytes.
func decodeResponse(response *http.Response) (any, error) {
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	contentType := response.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		decoded, err := utils.DecodeLenientJSON(string(raw))
		if err != nil {
			return string(raw), nil
		}
		return decoded, nil
	case strings.HasPrefix(contentType, "text/"):
		return string(raw), nil
	default:
		return raw, nil
	}
}

// sleepContext pauses for delay unless the context is cancelled first.
func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
