package dialer

// Package dialer provides outbound dialing implementations used by socksgate.
//
// Dialers implement a small interface (DialContext) and are used by the
// SOCKS5 gateway to open target connections either directly or by chaining
// through an upstream SOCKS5 proxy.
