// Package pkgroutine contains helpers for running goroutines safely.
//
// The Manager type limits concurrency, collects returned errors, and turns
// panics into PanicError values so that background work does not crash the
// process silently.
package pkgroutine
