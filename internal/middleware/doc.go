// Package middleware provides the HTTP middleware wrapped around the router:
// request IDs, raw body capture, legacy redirects, access logging and panic
// recovery.
package middleware
