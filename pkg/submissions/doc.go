// Package submissions holds the records created by the public intake
// forms: victim reports and volunteer applications.
//
// Intake is unauthenticated. Everything after intake is region-scoped:
// admins only see submissions from their own region unless they hold
// the top-scope role. Victim reports carry a triage status; volunteer
// applications do not, and any attempt to move one through the status
// workflow is rejected.
package submissions
