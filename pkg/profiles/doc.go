// Package profiles stores the application profile attached to each
// authenticated identity. A profile carries the role and optional region
// that every authorization decision is made from; an identity without a
// profile is treated as unauthenticated by the callers of this package.
package profiles
