package email

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"

	"github.com/flowmesh/flowmesh/engine"
)

func testConfig() Config {
	return Config{
		Credential: Credential{
			Username:   "notifier@example.com",
			Password:   "secret",
			ServerName: "smtp.example.com",
		},
		EmailSettings: map[string]any{
			"to":      "ops@example.com",
			"subject": "Default subject",
		},
	}
}

func newTestProcessor(t *testing.T, config Config) (*SenderProcessor, *[]*mail.Msg) {
	t.Helper()

	processor, err := NewSenderProcessor(config)
	if err != nil {
		t.Fatalf("NewSenderProcessor() error = %v", err)
	}

	var sent []*mail.Msg
	processor.send = func(_ context.Context, message *mail.Msg) error {
		sent = append(sent, message)
		return nil
	}
	return processor, &sent
}

func TestSendUsesConfiguredDefaults(t *testing.T) {
	processor, sent := newTestProcessor(t, testConfig())

	event := engine.NewEvent(engine.EventNotification, map[string]any{
		"content": "disk almost full",
	})
	result, err := processor.Process(context.Background(), event, &engine.NodeContext{NodeID: "mailer"})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	data := result.DataMap()
	if data["status"] != "sent" || data["subject"] != "Default subject" {
		t.Errorf("result data = %#v, want sent with default subject", data)
	}
	if result.Metadata["operation"] != "email_send" {
		t.Errorf("operation = %v, want email_send", result.Metadata["operation"])
	}
}

func TestEventFieldsWinOverDefaults(t *testing.T) {
	processor, sent := newTestProcessor(t, testConfig())

	event := engine.NewEvent(engine.EventAlert, map[string]any{
		"subject": "Pump failure",
		"to":      []any{"oncall@example.com", "lead@example.com"},
		"body":    "pump 3 stopped",
	})
	result, err := processor.Process(context.Background(), event, &engine.NodeContext{})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(*sent))
	}
	if result.DataMap()["subject"] != "Pump failure" {
		t.Errorf("subject = %v, event field should win", result.DataMap()["subject"])
	}
}

func TestStructuredContentIsPrettyPrinted(t *testing.T) {
	body := messageBody(map[string]any{
		"content": map[string]any{"sensor": "s1", "value": 21.5},
	})
	if !strings.Contains(body, "\"sensor\": \"s1\"") {
		t.Errorf("body = %q, want indented JSON", body)
	}

	if body := messageBody(map[string]any{"body": "explicit", "content": "ignored"}); body != "explicit" {
		t.Errorf("body = %q, explicit body should win", body)
	}
}

func TestBuildMessageRequiresEnvelope(t *testing.T) {
	processor, _ := newTestProcessor(t, Config{
		Credential: Credential{ServerName: "smtp.example.com"},
	})

	if _, err := processor.buildMessage(map[string]any{"subject": "s"}); !errors.Is(err, ErrMissingEnvelope) {
		t.Errorf("buildMessage(no to) error = %v, want ErrMissingEnvelope", err)
	}
	if _, err := processor.buildMessage(map[string]any{"to": "a@x.com"}); !errors.Is(err, ErrMissingEnvelope) {
		t.Errorf("buildMessage(no subject) error = %v, want ErrMissingEnvelope", err)
	}
}

func TestRecipients(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected []string
	}{
		{name: "single string", value: "a@x.com", expected: []string{"a@x.com"}},
		{name: "comma separated", value: "a@x.com, b@x.com", expected: []string{"a@x.com", "b@x.com"}},
		{name: "string list", value: []any{"a@x.com", "b@x.com"}, expected: []string{"a@x.com", "b@x.com"}},
		{name: "empty", value: "", expected: nil},
		{name: "nil", value: nil, expected: nil},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := recipients(test.value); !reflect.DeepEqual(got, test.expected) {
				t.Errorf("recipients(%v) = %v, want %v", test.value, got, test.expected)
			}
		})
	}
}

func TestValidationMiddleware(t *testing.T) {
	validation := NewValidation(map[string]any{"subject": "Default subject"})

	complete := engine.NewEvent(engine.EventNotification, map[string]any{"to": "a@x.com"})
	if _, err := validation.BeforeProcess(context.Background(), complete, "mailer"); err != nil {
		t.Errorf("BeforeProcess(defaults fill subject) error = %v", err)
	}

	missing := engine.NewEvent(engine.EventNotification, map[string]any{"body": "text"})
	if _, err := validation.BeforeProcess(context.Background(), missing, "mailer"); !errors.Is(err, ErrMissingEnvelope) {
		t.Errorf("BeforeProcess(no recipient) error = %v, want ErrMissingEnvelope", err)
	}
}

func TestNewSenderNode(t *testing.T) {
	node, err := NewSenderNode("mailer", testConfig())
	if err != nil {
		t.Fatalf("NewSenderNode() error = %v", err)
	}
	if node.Type() != "email_sender_node" {
		t.Errorf("node type = %s, want email_sender_node", node.Type())
	}

	if _, err := NewSenderNode("mailer", Config{}); err == nil {
		t.Error("NewSenderNode() without server expected error")
	}
}
