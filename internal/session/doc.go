// Package session holds the per-process context: active DCC, active user,
// authentication state, permission level and the roots of the open project.
//
// Every mutating core operation calls CheckPermissions on the session before
// doing anything, and aborts with no side effects when the gate fails.
package session
