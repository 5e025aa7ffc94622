// Package middleware provides generic node middleware usable on any node:
// structured event logging with payload truncation, and required-field
// validation for event payloads. Node packages with protocol-specific
// concerns (topic validation, email envelope validation) build their own
// middleware on the same interface.
package middleware
