package mqttconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/flowmesh/flowmesh/internal/utils"
)

var log = logrus.WithField("prefix", "mqttconn")

// ErrConnectExhausted is returned when every connect attempt failed.
var ErrConnectExhausted = errors.New("mqtt connect attempts exhausted")

// MessageHandler receives every message delivered on a subscribed topic.
type MessageHandler func(topic string, payload []byte, qos byte, retained bool)

// ConnManager owns one MQTT client for one broker. It performs the connect
// retry loop with exponential backoff, resubscribes the configured topics on
// every (re)connect, and re-enters the connect loop after an unexpected
// disconnect unless reconnection is disabled.
//
// The manager drives its own client; paho's built-in auto-reconnect is
// switched off so backoff and retry limits stay under the manager's control.
type ConnManager struct {
	config Config

	mu       sync.Mutex
	client   mqtt.Client
	running  bool
	stopping bool

	onMessage    MessageHandler
	onConnect    func(broker string)
	onDisconnect func(broker string, err error)
}

// NewConnManager validates the configuration and prepares a manager. No
// connection is made until Connect.
func NewConnManager(config Config) (*ConnManager, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &ConnManager{config: config}, nil
}

// OnMessage installs the handler invoked for every subscribed message.
// Must be called before Connect.
func (manager *ConnManager) OnMessage(handler MessageHandler) { manager.onMessage = handler }

// OnConnect installs a hook invoked after every successful (re)connect.
func (manager *ConnManager) OnConnect(hook func(broker string)) { manager.onConnect = hook }

// OnDisconnect installs a hook invoked when the connection is lost.
func (manager *ConnManager) OnDisconnect(hook func(broker string, err error)) {
	manager.onDisconnect = hook
}

// Broker returns the broker address the manager connects to.
func (manager *ConnManager) Broker() string { return manager.config.brokerAddress() }

// IsConnected reports whether the underlying client is currently connected.
func (manager *ConnManager) IsConnected() bool {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.client != nil && manager.client.IsConnected()
}

// Connect runs the connect retry loop and subscribes the configured topics.
// It blocks until connected, the attempts are exhausted, or ctx is done.
func (manager *ConnManager) Connect(ctx context.Context) error {
	manager.mu.Lock()
	if manager.running {
		manager.mu.Unlock()
		return nil
	}
	manager.running = true
	manager.stopping = false
	manager.client = mqtt.NewClient(manager.clientOptions())
	client := manager.client
	manager.mu.Unlock()

	return manager.connectLoop(ctx, client)
}

// connectLoop performs up to MaxRetries attempts with exponential backoff.
func (manager *ConnManager) connectLoop(ctx context.Context, client mqtt.Client) error {
	settings := manager.config.RetrySettings
	var lastErr error

	for attempt := 1; attempt <= settings.MaxRetries; attempt++ {
		token := client.Connect()
		token.Wait()
		if token.Error() == nil {
			log.WithFields(logrus.Fields{
				"broker":  manager.Broker(),
				"attempt": attempt,
			}).Info("connected to broker")
			if err := manager.subscribeAll(client); err != nil {
				return err
			}
			if manager.onConnect != nil {
				manager.onConnect(manager.Broker())
			}
			return nil
		}
		lastErr = token.Error()

		log.WithError(lastErr).WithFields(logrus.Fields{
			"broker":  manager.Broker(),
			"attempt": attempt,
		}).Warn("broker connect failed")

		if attempt < settings.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(connectBackoff(settings, attempt)):
			}
		}
	}

	return fmt.Errorf("%w: %s after %d attempts: %v",
		ErrConnectExhausted, manager.Broker(), settings.MaxRetries, lastErr)
}

// connectBackoff computes the delay after a failed connect attempt:
// delay(n) = min(retry_delay * backoff^(n-1), max_retry_delay).
func connectBackoff(settings RetrySettings, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(settings.RetryDelay) * math.Pow(settings.Backoff, float64(attempt-1)))
	if delay > settings.MaxRetryDelay {
		delay = settings.MaxRetryDelay
	}
	return delay
}

func (manager *ConnManager) clientOptions() *mqtt.ClientOptions {
	settings := manager.config.ClientSettings
	options := mqtt.NewClientOptions().
		AddBroker(manager.config.brokerAddress()).
		SetClientID(settings.ClientID).
		SetCleanSession(!settings.PersistentSession).
		SetKeepAlive(settings.Keepalive).
		SetAutoReconnect(false).
		SetConnectionLostHandler(manager.connectionLost)

	if manager.config.Credential.Username != "" {
		options.SetUsername(manager.config.Credential.Username)
		options.SetPassword(manager.config.Credential.Password)
	}
	if tlsConfig, err := manager.tlsConfig(); err != nil {
		log.WithError(err).Error("tls configuration failed, continuing without tls")
	} else if tlsConfig != nil {
		options.SetTLSConfig(tlsConfig)
	}
	return options
}

func (manager *ConnManager) tlsConfig() (*tls.Config, error) {
	credential := manager.config.Credential
	if credential.CACert == "" && credential.ClientCert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if credential.CACert != "" {
		pem, err := os.ReadFile(credential.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading ca cert: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("ca cert %s contains no certificates", credential.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	if credential.ClientCert != "" {
		pair, err := tls.LoadX509KeyPair(credential.ClientCert, credential.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("loading client key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{pair}
	}
	return tlsConfig, nil
}

// subscribeAll installs the configured topic subscriptions on the client.
func (manager *ConnManager) subscribeAll(client mqtt.Client) error {
	for _, subscription := range manager.config.SubscriptionSettings.Topics {
		if err := manager.subscribeOn(client, subscription.Topic, subscription.QoS); err != nil {
			return err
		}
	}
	return nil
}

func (manager *ConnManager) subscribeOn(client mqtt.Client, topic string, qos int) error {
	if qos == 0 {
		qos = manager.config.SubscriptionSettings.DefaultQoS
	}
	qos = normalizeQoSValue(qos)

	token := client.Subscribe(topic, byte(qos), func(_ mqtt.Client, message mqtt.Message) {
		if manager.onMessage != nil {
			manager.onMessage(message.Topic(), message.Payload(), message.Qos(), message.Retained())
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribing to %q: %w", topic, err)
	}
	log.WithFields(logrus.Fields{"topic": topic, "qos": qos}).Info("subscribed")
	return nil
}

// normalizeQoSValue collapses the sentinel used by TopicSubscription: a
// negative QoS means an explicit 0.
func normalizeQoSValue(qos int) int {
	if qos < 0 {
		return 0
	}
	if qos > 2 {
		return 2
	}
	return qos
}

// Subscribe adds a topic subscription at runtime.
func (manager *ConnManager) Subscribe(topic string, qos int) error {
	manager.mu.Lock()
	client := manager.client
	manager.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("subscribing to %q: not connected", topic)
	}
	return manager.subscribeOn(client, topic, qos)
}

// Unsubscribe removes a topic subscription at runtime.
func (manager *ConnManager) Unsubscribe(topic string) error {
	manager.mu.Lock()
	client := manager.client
	manager.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("unsubscribing from %q: not connected", topic)
	}

	token := client.Unsubscribe(topic)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("unsubscribing from %q: %w", topic, err)
	}
	return nil
}

// Publish sends a payload to a topic. String and byte payloads go out as-is;
// anything else is JSON-encoded.
func (manager *ConnManager) Publish(topic string, payload any, qos byte, retain bool) error {
	manager.mu.Lock()
	client := manager.client
	manager.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("publishing to %q: not connected", topic)
	}

	encoded, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encoding payload for %q: %w", topic, err)
	}

	token := client.Publish(topic, qos, retain, encoded)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to %q: %w", topic, err)
	}
	log.WithFields(logrus.Fields{
		"topic":   topic,
		"qos":     qos,
		"retain":  retain,
		"payload": utils.Stringify(payload, 120),
	}).Debug("published")
	return nil
}

// encodePayload normalizes a publish payload to bytes.
func encodePayload(payload any) ([]byte, error) {
	switch typed := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return typed, nil
	case string:
		return []byte(typed), nil
	default:
		return json.Marshal(typed)
	}
}

// connectionLost is paho's callback for an unexpected disconnect. It notifies
// the hook and, unless reconnection is disabled or the manager is stopping,
// re-enters the connect loop in the background.
func (manager *ConnManager) connectionLost(client mqtt.Client, err error) {
	log.WithError(err).WithField("broker", manager.Broker()).Warn("connection lost")
	if manager.onDisconnect != nil {
		manager.onDisconnect(manager.Broker(), err)
	}

	manager.mu.Lock()
	shouldReconnect := manager.running && !manager.stopping && !manager.config.RetrySettings.DisableReconnect
	manager.mu.Unlock()
	if !shouldReconnect {
		return
	}

	go func() {
		if err := manager.connectLoop(context.Background(), client); err != nil {
			log.WithError(err).WithField("broker", manager.Broker()).Error("reconnect failed")
		}
	}()
}

// Disconnect stops the manager and releases the connection. Safe to call on
// a manager that never connected.
func (manager *ConnManager) Disconnect() {
	manager.mu.Lock()
	manager.stopping = true
	manager.running = false
	client := manager.client
	manager.client = nil
	manager.mu.Unlock()

	if client != nil && client.IsConnected() {
		client.Disconnect(250)
	}
}
