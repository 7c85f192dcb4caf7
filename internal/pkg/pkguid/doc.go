// Package pkguid provides helpers for generating unique identifiers.
//
// Analyses are keyed by UUIDv7 strings so ids sort by creation time; stage
// events use Snowflake numbers rendered as decimal strings through Decimal.
package pkguid
