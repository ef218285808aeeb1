package proxy

// Package proxy implements the socksgate SOCKS5 server and its connection
// plumbing.
//
// Each accepted connection runs negotiation, request parsing, the outbound
// connect, and the relay in order, on its own goroutine. Shared helpers
// cover keep-alive listeners, relay buffers, and the bidirectional copy.
