// Package app wires the orchestration core together: configuration, the
// state store, the event router, the session manager, the resolver loop and
// the HTTP status server. It is decoupled from any entrypoint like a CLI.
package app
