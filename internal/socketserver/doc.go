// Package socketserver is the server side of the analysis protocol.
//
// The server accepts one TCP connection at a time. Each connection carries
// exactly one framed request and receives exactly one framed response, after
// which the connection is closed. Requests are dispatched through a
// dispatch.Registry populated by Service.
//
// # Lifecycle
//
// Serve returns after a terminal method (shutdown or exit) has been
// answered, or when its context is cancelled. Listen reports an occupied
// address as ErrAddrInUse so the executable can exit with code 123, which
// the client treats as "another server is already running".
//
// # Project state
//
// Feature methods (completion, hover, formatting, diagnostics) fail with
// NotInitialized until initialize has been called. initialize never fails
// on a bad workspace path; change_workspace does.
package socketserver
