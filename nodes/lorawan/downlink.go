package lorawan

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
)

var log = logrus.WithField("prefix", "lorawan")

// Network providers.
const (
	ProviderTTN        = "ttn"
	ProviderChirpStack = "chirpstack"
	ProviderHelium     = "helium"
	ProviderGeneric    = "generic"
)

// ErrDownlinkExhausted is returned after every downlink attempt failed.
var ErrDownlinkExhausted = errors.New("downlink attempts exhausted")

// ErrNoPayload is returned when neither the event nor the configuration
// carries a payload.
var ErrNoPayload = errors.New("no downlink payload")

var hexPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]+$`)

// Config configures a downlink node.
type Config struct {
	// NetworkProvider selects the request shape: ttn, chirpstack, helium,
	// or generic (default).
	NetworkProvider string `json:"network_provider,omitempty"`

	// APIURL is the complete downlink endpoint for the device queue.
	APIURL string `json:"api_url"`

	// APIKey is sent as a bearer token in the provider's auth header.
	APIKey string `json:"api_key,omitempty"`

	// DeviceID names the target device, echoed in result events.
	DeviceID string `json:"device_id,omitempty"`

	// Payload is the default downlink payload when the event carries none.
	Payload string `json:"payload,omitempty"`

	// FPort is the LoRaWAN application port, default 1.
	FPort int `json:"f_port,omitempty"`

	// Timeout bounds each POST attempt, default 30s.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Retries is the number of attempts, default 3.
	Retries int `json:"retries,omitempty"`

	// RetryDelay is the linear pause between attempts, default 1s. A
	// negative value disables it.
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

func (config *Config) applyDefaults() {
	if config.NetworkProvider == "" {
		config.NetworkProvider = ProviderGeneric
	}
	if config.FPort <= 0 {
		config.FPort = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Retries <= 0 {
		config.Retries = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	} else if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
}

// DownlinkProcessor sends one downlink per event.
type DownlinkProcessor struct {
	config Config
	client *http.Client
}

var _ engine.Processor = (*DownlinkProcessor)(nil)

// NewDownlinkProcessor validates the configuration and prepares a processor.
func NewDownlinkProcessor(config Config) (*DownlinkProcessor, error) {
	config.applyDefaults()
	if config.APIURL == "" {
		return nil, fmt.Errorf("lorawan config: api_url is required")
	}
	switch config.NetworkProvider {
	case ProviderTTN, ProviderChirpStack, ProviderHelium, ProviderGeneric:
	default:
		return nil, fmt.Errorf("lorawan config: unknown provider %q", config.NetworkProvider)
	}

	return &DownlinkProcessor{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// CanHandle accepts payload-bearing event types.
func (processor *DownlinkProcessor) CanHandle(event *engine.Event) bool {
	switch event.Type {
	case engine.EventDataChange, engine.EventComputationResult,
		engine.EventNotification, engine.EventCustom:
		return true
	default:
		return false
	}
}

// Process resolves the payload, encodes it, and POSTs the provider-shaped
// body with retries.
func (processor *DownlinkProcessor) Process(ctx context.Context, event *engine.Event, nodeCtx *engine.NodeContext) (*engine.Event, error) {
	payload := processor.resolvePayload(event)
	if payload == "" {
		return nil, ErrNoPayload
	}

	encoded := EncodePayload(payload)
	body, err := json.Marshal(processor.requestBody(encoded))
	if err != nil {
		return nil, fmt.Errorf("encoding downlink body: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= processor.config.Retries; attempt++ {
		content, status, err := processor.post(ctx, body)
		if err == nil {
			return engine.NewEventWithMetadata(engine.EventComputationResult, map[string]any{
				"content":      content,
				"status":       status,
				"device_id":    processor.config.DeviceID,
				"payload_sent": encoded,
			}, map[string]any{
				"status":    "success",
				"operation": "lorawan_downlink",
				"attempt":   attempt,
			}), nil
		}

		lastErr = err
		log.WithError(err).WithFields(logrus.Fields{
			"device":  processor.config.DeviceID,
			"attempt": attempt,
		}).Warn("downlink attempt failed")

		if attempt < processor.config.Retries && processor.config.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(processor.config.RetryDelay):
			}
		}
	}

	return nil, fmt.Errorf("%w: device %s after %d attempts: %v",
		ErrDownlinkExhausted, processor.config.DeviceID, processor.config.Retries, lastErr)
}

func (processor *DownlinkProcessor) resolvePayload(event *engine.Event) string {
	if data := event.DataMap(); data != nil {
		if payload, _ := data["payload"].(string); payload != "" {
			return payload
		}
	} else if payload, isString := event.Data.(string); isString && payload != "" {
		return payload
	}
	return processor.config.Payload
}

// EncodePayload base64-encodes a downlink payload. Hex strings (optionally
// 0x-prefixed, even length) are decoded to bytes first; anything else is
// treated as UTF-8 text.
func EncodePayload(payload string) string {
	trimmed := strings.TrimPrefix(payload, "0x")
	if hexPattern.MatchString(payload) && len(trimmed)%2 == 0 {
		if raw, err := hex.DecodeString(trimmed); err == nil {
			return base64.StdEncoding.EncodeToString(raw)
		}
	}
	return base64.StdEncoding.EncodeToString([]byte(payload))
}

// requestBody shapes the downlink request for the configured provider.
func (processor *DownlinkProcessor) requestBody(encoded string) map[string]any {
	fport := processor.config.FPort
	switch processor.config.NetworkProvider {
	case ProviderTTN:
		return map[string]any{
			"downlinks": []any{map[string]any{
				"f_port":      fport,
				"frm_payload": encoded,
				"priority":    "NORMAL",
			}},
		}
	case ProviderChirpStack:
		return map[string]any{
			"deviceQueueItem": map[string]any{
				"data":      encoded,
				"fPort":     fport,
				"confirmed": false,
			},
		}
	case ProviderHelium:
		return map[string]any{
			"payload_raw": encoded,
			"port":        fport,
			"confirmed":   false,
		}
	default:
		return map[string]any{
			"payload": encoded,
			"port":    fport,
		}
	}
}

// headers builds the provider-specific request headers. ChirpStack carries
// its bearer token in a gRPC metadata header.
func (processor *DownlinkProcessor) headers() map[string]string {
	headers := map[string]string{"Content-Type": "application/json"}
	if processor.config.APIKey == "" {
		return headers
	}

	token := "Bearer " + processor.config.APIKey
	if processor.config.NetworkProvider == ProviderChirpStack {
		headers["Grpc-Metadata-Authorization"] = token
	} else {
		headers["Authorization"] = token
	}
	return headers
}

func (processor *DownlinkProcessor) post(ctx context.Context, body []byte) (string, int, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, processor.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	for key, value := range processor.headers() {
		request.Header.Set(key, value)
	}

	response, err := processor.client.Do(request)
	if err != nil {
		return "", 0, err
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return "", 0, err
	}
	if response.StatusCode >= 400 {
		return "", 0, fmt.Errorf("network server returned %d: %s", response.StatusCode, content)
	}
	return string(content), response.StatusCode, nil
}

// NewDownlinkNode creates a LoRaWAN sink node with logging middleware.
func NewDownlinkNode(id string, config Config, opts ...engine.NodeOption) (*engine.Node, error) {
	processor, err := NewDownlinkProcessor(config)
	if err != nil {
		return nil, err
	}

	return engine.NewNode(id, append([]engine.NodeOption{
		engine.WithType("lorawan_downlink_node"),
		engine.WithProcessor(processor),
		engine.WithMiddleware(middleware.NewLogging("lorawan")),
	}, opts...)...), nil
}
