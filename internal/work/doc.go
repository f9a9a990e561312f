// Package work implements the versioned work entity and its publish
// lineage: manifest persistence, monotonic version numbering, soft-delete
// purgatory, localization and promote semantics.
package work
