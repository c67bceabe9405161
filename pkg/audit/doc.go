// Package audit records who did what to whom across the admin
// dashboard.
//
// Every mutating operation emits an audit entry: user provisioning and
// removal, role changes, submission status updates, sign-in and
// sign-out. Recording is fire-and-forget: a failed write is logged and
// counted but never fails the operation that triggered it.
package audit
