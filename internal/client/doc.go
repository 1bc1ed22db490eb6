// Package client implements the client side of the unix socket protocol:
// connect, send one request, read one response, close.
package client
