// Package main hosts the Slate CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into calls
// against the project database: subproject and task maintenance, work and
// version bookkeeping, publish pipeline runs, user administration, and
// configuration scaffolding. It centralizes configuration resolution, session
// setup, and structured logging so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
