// Package users provisions and manages admin accounts.
//
// An account is two records in two systems: an Identity in the hosted
// auth backend and a Profile row here. Creation makes both, deletion
// removes both, and a failure in the second step of creation rolls the
// first back so no orphaned identity is left holding credentials.
package users
