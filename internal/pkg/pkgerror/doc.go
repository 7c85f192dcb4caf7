// Package pkgerror defines shared error types and sentinel errors used across
// the application.
//
// Handlers and use cases return *Error values carrying a user-facing message,
// a high-level type and a stable code. The router maps the code to an HTTP
// status (for example CodeTooLarge to 413 for oversized flight logs) and only
// the message reaches the client; wrapped causes stay in the logs.
package pkgerror
