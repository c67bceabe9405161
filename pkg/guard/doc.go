// Package guard makes the authorization decision for every admin
// request: is the caller signed in, and does their role grant the page
// or endpoint being asked for.
//
// The two failure modes are deliberately distinct. A caller with no
// live session or no profile is unauthenticated and sent to sign in.
// A signed-in caller whose role does not cover the resource is
// forbidden and sent to their own landing page instead; their session
// stays intact.
package guard
