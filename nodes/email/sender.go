package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/wneessen/go-mail"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/internal/utils"
	"github.com/flowmesh/flowmesh/middleware"
)

var log = logrus.WithField("prefix", "email")

// ErrMissingEnvelope is returned when neither the event nor the configured
// defaults provide a recipient and subject.
var ErrMissingEnvelope = errors.New("missing recipient or subject")

// Credential identifies the SMTP server and account.
type Credential struct {
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	ServerName string `json:"server_name"`
	ServerPort int    `json:"server_port,omitempty"`

	// UseSSL selects implicit TLS (typically port 465). Without it the
	// client negotiates STARTTLS opportunistically.
	UseSSL bool `json:"use_ssl,omitempty"`
}

// Config configures a sender node.
type Config struct {
	Credential Credential `json:"credential"`

	// DefaultFrom is the sender address when neither the event nor
	// EmailSettings name one. Falls back to the credential username.
	DefaultFrom string `json:"default_from,omitempty"`

	// EmailSettings are the per-message defaults (to, cc, bcc, subject,
	// body, html_body, attachments). Event data fields win over them.
	EmailSettings map[string]any `json:"email_settings,omitempty"`
}

func (config *Config) applyDefaults() {
	if config.Credential.ServerPort == 0 {
		if config.Credential.UseSSL {
			config.Credential.ServerPort = 465
		} else {
			config.Credential.ServerPort = 587
		}
	}
	if config.DefaultFrom == "" {
		config.DefaultFrom = config.Credential.Username
	}
	if config.EmailSettings == nil {
		config.EmailSettings = make(map[string]any)
	}
}

// SenderProcessor renders and sends one email per event.
type SenderProcessor struct {
	config Config

	// send is swapped out in tests.
	send func(ctx context.Context, message *mail.Msg) error
}

var _ engine.Processor = (*SenderProcessor)(nil)

// NewSenderProcessor creates a processor for the given account.
func NewSenderProcessor(config Config) (*SenderProcessor, error) {
	config.applyDefaults()
	if config.Credential.ServerName == "" {
		return nil, fmt.Errorf("email config: server_name is required")
	}

	processor := &SenderProcessor{config: config}
	processor.send = processor.dialAndSend
	return processor, nil
}

// CanHandle accepts every event that carries message content; failures pass
// through untouched so an email node can sit behind error handlers.
func (processor *SenderProcessor) CanHandle(event *engine.Event) bool {
	switch event.Type {
	case engine.EventNotification, engine.EventAlert, engine.EventDataChange,
		engine.EventComputationResult, engine.EventCustom:
		return true
	default:
		return false
	}
}

// Process merges the event fields over the configured defaults, builds the
// message, and sends it.
func (processor *SenderProcessor) Process(ctx context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	settings := processor.mergedSettings(event)

	message, err := processor.buildMessage(settings)
	if err != nil {
		return nil, err
	}

	if err := processor.send(ctx, message); err != nil {
		return nil, fmt.Errorf("sending email: %w", err)
	}

	log.WithFields(logrus.Fields{
		"node":    nodeCtx.NodeID,
		"to":      settings["to"],
		"subject": settings["subject"],
	}).Info("email sent")

	return engine.NewEventWithMetadata(engine.EventComputationResult, map[string]any{
		"status":  "sent",
		"to":      settings["to"],
		"subject": settings["subject"],
	}, map[string]any{
		"status":    "success",
		"operation": "email_send",
	}), nil
}

// mergedSettings layers the event data over the configured defaults, event
// fields winning.
func (processor *SenderProcessor) mergedSettings(event *engine.Event) map[string]any {
	data := event.DataMap()
	if data == nil {
		data = map[string]any{"content": event.Data}
	}
	return utils.DeepMergeMaps(processor.config.EmailSettings, data)
}

// buildMessage renders one mail.Msg from the merged settings.
func (processor *SenderProcessor) buildMessage(settings map[string]any) (*mail.Msg, error) {
	to := recipients(settings["to"])
	subject, _ := settings["subject"].(string)
	if len(to) == 0 || subject == "" {
		return nil, ErrMissingEnvelope
	}

	message := mail.NewMsg()

	from, _ := settings["from"].(string)
	if from == "" {
		from = processor.config.DefaultFrom
	}
	if err := message.From(from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := message.To(to...); err != nil {
		return nil, fmt.Errorf("invalid to addresses %v: %w", to, err)
	}
	if cc := recipients(settings["cc"]); len(cc) > 0 {
		if err := message.Cc(cc...); err != nil {
			return nil, fmt.Errorf("invalid cc addresses %v: %w", cc, err)
		}
	}
	if bcc := recipients(settings["bcc"]); len(bcc) > 0 {
		if err := message.Bcc(bcc...); err != nil {
			return nil, fmt.Errorf("invalid bcc addresses %v: %w", bcc, err)
		}
	}

	message.Subject(subject)
	message.SetBodyString(mail.TypeTextPlain, messageBody(settings))
	if htmlBody, _ := settings["html_body"].(string); htmlBody != "" {
		message.AddAlternativeString(mail.TypeTextHTML, htmlBody)
	}

	if err := attach(message, settings["attachments"]); err != nil {
		return nil, err
	}
	return message, nil
}

// messageBody resolves the plain-text body: an explicit body wins, otherwise
// the content field is used, pretty-printing structured values.
func messageBody(settings map[string]any) string {
	if body, _ := settings["body"].(string); body != "" {
		return body
	}

	content, present := settings["content"]
	if !present || content == nil {
		return ""
	}
	switch typed := content.(type) {
	case string:
		return typed
	default:
		pretty, err := json.MarshalIndent(typed, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", typed)
		}
		return string(pretty)
	}
}

// recipients normalizes an address field: a single string, a comma-separated
// string, or a list of strings.
func recipients(value any) []string {
	switch typed := value.(type) {
	case string:
		if typed == "" {
			return nil
		}
		var addresses []string
		for _, address := range strings.Split(typed, ",") {
			if trimmed := strings.TrimSpace(address); trimmed != "" {
				addresses = append(addresses, trimmed)
			}
		}
		return addresses
	case []string:
		return typed
	case []any:
		var addresses []string
		for _, item := range typed {
			if address, isString := item.(string); isString && address != "" {
				addresses = append(addresses, address)
			}
		}
		return addresses
	default:
		return nil
	}
}

// attach adds attachments given as a list of {filename, content} maps.
func attach(message *mail.Msg, value any) error {
	items, isList := value.([]any)
	if !isList {
		return nil
	}

	for index, item := range items {
		attachment, isMap := item.(map[string]any)
		if !isMap {
			return fmt.Errorf("attachment %d is %T, want object", index, item)
		}
		filename, _ := attachment["filename"].(string)
		if filename == "" {
			return fmt.Errorf("attachment %d has no filename", index)
		}

		var content []byte
		switch typed := attachment["content"].(type) {
		case string:
			content = []byte(typed)
		case []byte:
			content = typed
		default:
			return fmt.Errorf("attachment %q has unsupported content type %T", filename, typed)
		}
		if err := message.AttachReader(filename, bytes.NewReader(content)); err != nil {
			return fmt.Errorf("attaching %q: %w", filename, err)
		}
	}
	return nil
}

// dialAndSend connects to the configured server and delivers the message.
// Authentication failures degrade to a warning so unauthenticated relays
// keep working.
func (processor *SenderProcessor) dialAndSend(ctx context.Context, message *mail.Msg) error {
	credential := processor.config.Credential

	options := []mail.Option{mail.WithPort(credential.ServerPort)}
	if credential.UseSSL {
		options = append(options, mail.WithSSL())
	} else {
		options = append(options, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if credential.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(credential.Username),
			mail.WithPassword(credential.Password))
	}

	client, err := mail.NewClient(credential.ServerName, options...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		var authErr *mail.SendError
		if errors.As(err, &authErr) && credential.Username != "" {
			log.WithError(err).Warn("authenticated send failed, retrying without auth")
			plain, retryErr := mail.NewClient(credential.ServerName,
				mail.WithPort(credential.ServerPort),
				mail.WithTLSPolicy(mail.TLSOpportunistic))
			if retryErr == nil && plain.DialAndSendWithContext(ctx, message) == nil {
				return nil
			}
		}
		return err
	}
	return nil
}

// Validation rejects events that would produce an unsendable message before
// the processor runs. Configured defaults count, so an event without a "to"
// field passes when the node's settings provide one.
type Validation struct {
	defaults map[string]any
}

var _ engine.Middleware = (*Validation)(nil)

// NewValidation creates the validation middleware for the given defaults.
func NewValidation(defaults map[string]any) *Validation {
	return &Validation{defaults: defaults}
}

// BeforeProcess checks that a recipient and subject are resolvable.
func (validation *Validation) BeforeProcess(ctx context.Context, event *engine.Event, nodeID string) (*engine.Event, error) {
	merged := utils.DeepMergeMaps(validation.defaults, event.DataMap())
	if len(recipients(merged["to"])) == 0 {
		return nil, fmt.Errorf("%w: no recipient", ErrMissingEnvelope)
	}
	if subject, _ := merged["subject"].(string); subject == "" {
		return nil, fmt.Errorf("%w: no subject", ErrMissingEnvelope)
	}
	return event, nil
}

// AfterProcess passes the result through unchanged.
func (validation *Validation) AfterProcess(ctx context.Context, original *engine.Event, result *engine.Event, nodeID string) (*engine.Event, error) {
	return result, nil
}

// NewSenderNode creates an email sink node with validation and logging
// middleware.
func NewSenderNode(id string, config Config, opts ...engine.NodeOption) (*engine.Node, error) {
	processor, err := NewSenderProcessor(config)
	if err != nil {
		return nil, err
	}

	return engine.NewNode(id, append([]engine.NodeOption{
		engine.WithType("email_sender_node"),
		engine.WithProcessor(processor),
		engine.WithMiddleware(NewValidation(processor.config.EmailSettings)),
		engine.WithMiddleware(middleware.NewLogging("email")),
	}, opts...)...), nil
}
