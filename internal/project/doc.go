// Package project implements the project root and its subproject tree. The
// tree is an arena of id-addressed nodes persisted to the shadow database as
// project_structure.json, with per-key metadata that cascades from parent to
// child unless overridden.
package project
