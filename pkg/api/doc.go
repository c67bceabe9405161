// Package api assembles the HTTP surface: public intake, the auth
// flow, the guarded admin endpoints, and the operational endpoints for
// health and metrics.
package api
