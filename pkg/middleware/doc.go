// Package middleware provides the request plumbing that runs before
// any handler: request ids, per-request loggers, and rate limiting for
// the unauthenticated intake endpoint.
package middleware
