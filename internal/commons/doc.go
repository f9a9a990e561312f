// Package commons manages the shared studio reference database: the user
// list, category definitions, metadata schema and structure templates.
//
// The database is a single SQLite file inside the commons folder that every
// workstation points at. It is read-mostly; writes happen on explicit admin
// actions. The built-in Admin and Generic users always exist, cannot be
// deleted, and their permission levels cannot be altered.
package commons
