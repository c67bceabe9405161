// Package config loads Beacon server configuration from environment
// variables (BEACON_ prefix).
//
// The hosted auth backend's service-role key is the one setting that is
// allowed to be absent at startup: without it the server still serves
// scoped reads, but the privileged user-management endpoints answer 500
// until it is provided. Everything else is validated up front.
package config
