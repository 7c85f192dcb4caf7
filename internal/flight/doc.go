// Package flight wires the flight log analyzer: an in-memory analysis store,
// the stage event bus with its consumer and websocket hub, the usecase that
// runs the decode, parse, resolve and summarize pipeline in the background,
// and the HTTP endpoints under /flights.
package flight
