// Package identity talks to the hosted auth backend's admin API.
//
// The dashboard never stores credentials itself. Accounts are created
// auto-confirmed and passwordless through this client; the new user
// sets a password via the recovery email the backend sends. All calls
// here require the service-role key, which stays server-side only.
package identity
