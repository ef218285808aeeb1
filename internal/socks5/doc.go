// Package socks5 implements the server side of the SOCKS5 CONNECT handshake
// used by socksgate, plus the small client helpers needed to chain through
// an upstream SOCKS5 proxy.
//
// Protocol constants and the fixed-shape replies come from
// github.com/txthinking/socks5. Greeting, authentication, and request
// parsing are done by hand so that every field is validated as soon as it is
// read and a bad field aborts the connection before anything else is
// consumed.
//
// Failures are reported with the sentinel errors in errors.go; use errors.Is
// to classify them.
package socks5
