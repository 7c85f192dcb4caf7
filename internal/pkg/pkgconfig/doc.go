// Package pkgconfig provides a small abstraction for reading configuration values.
//
// Business code depends on the Config interface so it stays easy to test and
// does not care where values come from. The Viper implementation reads a YAML
// file, falls back to registered defaults, and lets environment variables
// override any key (GOFLIGHT_ prefix, dots become underscores, so
// flight.max_upload_bytes is GOFLIGHT_FLIGHT_MAX_UPLOAD_BYTES).
package pkgconfig
