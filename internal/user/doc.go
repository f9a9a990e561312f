// Package user manages the active user session on top of the commons
// database: login and auto-login, user administration for admins, and the
// per-machine bookmark and resume state stored in the user directory.
package user
