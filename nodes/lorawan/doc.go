// Package lorawan implements a downlink sink node. Payloads given as hex or
// UTF-8 text are base64-encoded and POSTed to a network server using the
// request shape of the configured provider (The Things Network, ChirpStack,
// Helium, or a generic JSON body), with linear retries.
package lorawan
