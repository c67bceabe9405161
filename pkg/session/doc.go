// Package session manages server-side login sessions in Redis.
//
// A session is created at sign-in, carries the identity id, and lives
// under a sliding idle TTL: every authenticated request refreshes the
// TTL, and a session untouched for the idle timeout disappears on its
// own. A hard maximum lifetime caps how long a session can slide.
package session
