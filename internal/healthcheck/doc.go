// Package healthcheck polls upstream services on their health endpoint.
// Checks use their own HTTP client and timeout, apart from request traffic.
// A failing service never affects another one.
// Results are informational: they do not gate dispatch.
package healthcheck
