// Package mqttconn connects the graph to MQTT brokers. A ConnManager owns
// exactly one client and handles TLS, authentication, exponential-backoff
// connect retries, topic (re)subscription, and reconnection after unexpected
// disconnects. Subscriber nodes turn broker messages into MQTT_MESSAGE
// events; publisher nodes turn events into broker publishes.
package mqttconn
