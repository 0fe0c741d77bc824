// Package routing holds the boot-time route table and the resolver that maps
// an inbound path and API version to exactly one upstream target.
//
// A table has four parts:
//
//   - a per-version static table, matched first, in declaration order
//   - a version-agnostic dynamic table of parameterized patterns
//   - legacy redirect rules, answered before routing
//   - locally handled paths that are never proxied
//
// Route patterns use literal segments, named parameters (":name", one segment)
// and a trailing wildcard ("*", the remainder of the path). Every pattern is
// compiled once into a regular expression when the table is built, so a bad
// pattern fails startup rather than a request.
//
// Paths are canonicalized before matching: a single trailing slash is dropped
// from any path longer than "/", and a trailing "/*" also matches the bare
// prefix.
package routing
