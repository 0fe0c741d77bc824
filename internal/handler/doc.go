// Package handler implements the main HTTP request handler for the router.
// It extracts the API version, resolves the route and either dispatches the
// request upstream or passes it to the next handler.
package handler
