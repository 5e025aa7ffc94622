package mqttconn

import (
	"fmt"
	"time"
)

// Credential carries authentication and TLS material for a broker
// connection. All TLS fields are file paths; CACert alone enables server
// verification, ClientCert plus ClientKey add mutual TLS.
type Credential struct {
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	CACert     string `json:"ca_cert,omitempty"`
	ClientCert string `json:"client_cert,omitempty"`
	ClientKey  string `json:"client_key,omitempty"`
}

// ClientSettings identify the broker and the client session.
type ClientSettings struct {
	// Broker is the broker host name or IP.
	Broker string `json:"broker"`

	// Port is the broker port, default 1883.
	Port int `json:"port,omitempty"`

	// ClientID identifies this session to the broker.
	ClientID string `json:"client_id,omitempty"`

	// PersistentSession requests a persistent (non-clean) session. The
	// default is a clean session.
	PersistentSession bool `json:"persistent_session,omitempty"`

	// Keepalive is the MQTT keepalive interval, default 60s.
	Keepalive time.Duration `json:"keepalive,omitempty"`
}

// RetrySettings tune the connect retry loop and reconnection behavior.
type RetrySettings struct {
	// MaxRetries is the number of connect attempts, default 5.
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelay is the base delay before the second attempt, default 5s.
	// A negative value disables the delay.
	RetryDelay time.Duration `json:"retry_delay,omitempty"`

	// Backoff is the exponential growth factor, default 2.0.
	Backoff float64 `json:"backoff,omitempty"`

	// MaxRetryDelay clamps the computed delay, default 60s.
	MaxRetryDelay time.Duration `json:"max_retry_delay,omitempty"`

	// DisableReconnect turns off the reconnect loop after an unexpected
	// disconnect. Reconnection is on by default.
	DisableReconnect bool `json:"disable_reconnect,omitempty"`
}

// TopicSubscription names one topic filter and its QoS. Wildcards "+" and
// "#" are allowed per MQTT.
type TopicSubscription struct {
	Topic string `json:"topic"`

	// QoS for this subscription. Zero falls back to the subscription
	// default; a negative value selects QoS 0 explicitly.
	QoS int `json:"qos,omitempty"`
}

// SubscriptionSettings configure a subscriber node.
type SubscriptionSettings struct {
	Topics []TopicSubscription `json:"topics,omitempty"`

	// DefaultQoS applies to topics without an explicit QoS, default 1.
	// A negative value selects QoS 0.
	DefaultQoS int `json:"default_qos,omitempty"`
}

// PublishSettings configure a publisher node.
type PublishSettings struct {
	// DefaultTopic receives payloads of events that do not name a topic.
	DefaultTopic string `json:"default_topic,omitempty"`

	// DefaultQoS applies to publishes without an explicit QoS, default 1.
	// A negative value selects QoS 0.
	DefaultQoS int `json:"default_qos,omitempty"`

	// DefaultRetain applies to publishes without an explicit retain flag.
	DefaultRetain bool `json:"default_retain,omitempty"`
}

// Config is the full broker configuration shared by subscriber and publisher
// nodes.
type Config struct {
	Credential           Credential           `json:"credential,omitempty"`
	ClientSettings       ClientSettings       `json:"client_settings"`
	RetrySettings        RetrySettings        `json:"retry_settings,omitempty"`
	SubscriptionSettings SubscriptionSettings `json:"subscription_settings,omitempty"`
	PublishSettings      PublishSettings      `json:"publish_settings,omitempty"`
}

func (config *Config) applyDefaults() {
	if config.ClientSettings.Port == 0 {
		config.ClientSettings.Port = 1883
	}
	if config.ClientSettings.Keepalive <= 0 {
		config.ClientSettings.Keepalive = 60 * time.Second
	}

	if config.RetrySettings.MaxRetries <= 0 {
		config.RetrySettings.MaxRetries = 5
	}
	if config.RetrySettings.RetryDelay == 0 {
		config.RetrySettings.RetryDelay = 5 * time.Second
	} else if config.RetrySettings.RetryDelay < 0 {
		config.RetrySettings.RetryDelay = 0
	}
	if config.RetrySettings.Backoff <= 0 {
		config.RetrySettings.Backoff = 2.0
	}
	if config.RetrySettings.MaxRetryDelay <= 0 {
		config.RetrySettings.MaxRetryDelay = 60 * time.Second
	}

	config.SubscriptionSettings.DefaultQoS = normalizeQoS(config.SubscriptionSettings.DefaultQoS)
	config.PublishSettings.DefaultQoS = normalizeQoS(config.PublishSettings.DefaultQoS)
}

// normalizeQoS maps the zero value to the default QoS 1 and a negative value
// to an explicit QoS 0.
func normalizeQoS(qos int) int {
	switch {
	case qos < 0:
		return 0
	case qos == 0:
		return 1
	case qos > 2:
		return 2
	default:
		return qos
	}
}

func (config *Config) validate() error {
	if config.ClientSettings.Broker == "" {
		return fmt.Errorf("mqtt config: broker is required")
	}
	if (config.Credential.ClientCert == "") != (config.Credential.ClientKey == "") {
		return fmt.Errorf("mqtt config: client_cert and client_key must be set together")
	}
	return nil
}

// brokerAddress renders the paho broker URL, switching to ssl when TLS
// material is configured.
func (config *Config) brokerAddress() string {
	scheme := "tcp"
	if config.Credential.CACert != "" || config.Credential.ClientCert != "" {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, config.ClientSettings.Broker, config.ClientSettings.Port)
}
