// Package config loads the router configuration from YAML and environment
// variables and validates it. It covers the listener, logging, health checks,
// proxy tuning, the version policy, the service registry and the route
// tables, and converts them into the inputs of the backend and routing
// packages.
package config
