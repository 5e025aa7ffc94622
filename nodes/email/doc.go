// Package email implements an SMTP sink node. Event fields are merged over
// configured defaults, rendered into a multipart message with optional HTML
// alternative and attachments, and delivered over SSL or opportunistic
// STARTTLS with optional authentication.
package email
