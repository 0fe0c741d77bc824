// Package backend holds the service registry: the named upstream services the
// router forwards to, each with a long-lived reverse proxy over a pooled
// transport and a last-known health flag.
package backend
