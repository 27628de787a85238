// Package socketclient is the client side of the analysis server protocol.
//
// Every call opens a fresh TCP connection, writes one framed request, reads
// one framed response and closes the connection. There is no persistent
// connection and no pipelining.
//
// Failures are reported in two ways:
//
//   - transport failures the caller must act on (the server is not
//     listening) are Go errors wrapping ErrServerUnavailable;
//   - everything that happens after the connection is established is folded
//     into a response: a timeout becomes a RequestTimeout error response and
//     a malformed reply becomes an InputError response.
//
// Basic usage:
//
//	client := socketclient.NewClient(socketclient.DefaultConfig())
//	items, err := client.Completion(ctx, source, row, column)
//	if rpc.IsCode(err, rpc.CodeNotInitialized) {
//	    // initialize and retry
//	}
package socketclient
