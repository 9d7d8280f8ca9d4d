// Package rpc implements the websocket JSON-RPC 2.0 transport to a
// ledger node. Conn multiplexes concurrent calls and subscriptions over
// one socket; Node wraps it with the concrete state and author methods
// the client package's Transport interface needs.
package rpc
