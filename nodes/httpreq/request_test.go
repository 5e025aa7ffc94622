package httpreq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowmesh/flowmesh/engine"
)

// collector records every event delivered to it.
type collector struct {
	mu     sync.Mutex
	events []*engine.Event
}

var _ engine.Observer = (*collector)(nil)

func (c *collector) ID() string { return "collector" }

func (c *collector) Update(_ context.Context, event *engine.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func requestEvent(url string) *engine.Event {
	return engine.NewEvent(engine.EventDataChange, map[string]any{"url": url})
}

func TestRequestSucceeds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != defaultUserAgent {
			t.Errorf("User-Agent = %q, want %q", r.Header.Get("User-Agent"), defaultUserAgent)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	processor := NewRequestProcessor(http.MethodGet, Config{})
	result, err := processor.Process(context.Background(), requestEvent(server.URL), &engine.NodeContext{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	data := result.DataMap()
	if data["status"] != http.StatusOK {
		t.Errorf("status = %v, want 200", data["status"])
	}
	content, isMap := data["content"].(map[string]any)
	if !isMap || content["ok"] != true {
		t.Errorf("content = %#v, want decoded JSON", data["content"])
	}
	if result.Metadata["attempt"] != 1 {
		t.Errorf("attempt = %v, want 1", result.Metadata["attempt"])
	}
}

func TestRequestRetriesExhaust(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	processor := NewRequestProcessor(http.MethodGet, Config{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 3,
		RetryDelay: -1,
	})

	_, err := processor.Process(context.Background(), requestEvent(server.URL), &engine.NodeContext{})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Process() error = %v, want ErrRetryExhausted", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestRequestSucceedsOnSecondAttempt(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("recovered"))
	}))
	defer server.Close()

	processor := NewRequestProcessor(http.MethodGet, Config{
		Timeout:    50 * time.Millisecond,
		MaxRetries: 3,
		RetryDelay: -1,
	})

	result, err := processor.Process(context.Background(), requestEvent(server.URL), &engine.NodeContext{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.Metadata["attempt"] != 2 {
		t.Errorf("attempt = %v, want 2", result.Metadata["attempt"])
	}
	if result.DataMap()["content"] != "recovered" {
		t.Errorf("content = %v, want recovered", result.DataMap()["content"])
	}
}

func TestRequestRejectsBadURL(t *testing.T) {
	processor := NewRequestProcessor(http.MethodGet, Config{})

	for _, url := range []string{"", "ftp://example.com", "example.com"} {
		if _, err := processor.Process(context.Background(), requestEvent(url), &engine.NodeContext{}); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("Process(%q) error = %v, want ErrInvalidURL", url, err)
		}
	}
}

func TestPostSendsJSONBody(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Store(r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	processor := NewRequestProcessor(http.MethodPost, Config{})
	event := engine.NewEvent(engine.EventDataChange, map[string]any{
		"url":  server.URL,
		"data": map[string]any{"x": 1},
	})

	result, err := processor.Process(context.Background(), event, &engine.NodeContext{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if result.DataMap()["status"] != http.StatusCreated {
		t.Errorf("status = %v, want 201", result.DataMap()["status"])
	}
	if received.Load() != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", received.Load())
	}
}

func TestNodeEmitsErrorEventOnExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	node := NewGetNode("fetcher", Config{
		Timeout:    20 * time.Millisecond,
		MaxRetries: 2,
		RetryDelay: -1,
	})
	sink := &collector{}
	node.AddObserver(sink)

	if err := node.Update(context.Background(), requestEvent(server.URL)); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("collector received %d events, want 1", len(sink.events))
	}
	failure := sink.events[0]
	if failure.Type != engine.EventError {
		t.Fatalf("event type = %s, want error", failure.Type)
	}
	if failure.Metadata["status"] != "error" {
		t.Errorf("metadata status = %v, want error", failure.Metadata["status"])
	}
	if failure.SourceID != "fetcher" {
		t.Errorf("source_id = %s, want fetcher", failure.SourceID)
	}
	if node.State() != engine.StateError {
		t.Errorf("node state = %s, want error", node.State())
	}
}
