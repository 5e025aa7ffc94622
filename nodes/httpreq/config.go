package httpreq

import "time"

const defaultUserAgent = "flowmesh/1.0"

// Config tunes the request processors. The zero value selects the defaults.
type Config struct {
	// Timeout is the total per-attempt deadline, default 30s.
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries is the total number of attempts, default 3.
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryDelay is the linear pause between attempts, default 1s. A
	// negative value disables the pause entirely.
	RetryDelay time.Duration `json:"retry_delay,omitempty"`

	// Headers are added to every request. A User-Agent is set unless the
	// map overrides it.
	Headers map[string]string `json:"headers,omitempty"`
}

func (config *Config) applyDefaults() {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	} else if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}
	if _, set := config.Headers["User-Agent"]; !set {
		config.Headers["User-Agent"] = defaultUserAgent
	}
}
