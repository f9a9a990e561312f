// Package publish drives the publish pipeline: resolve the work behind the
// open scene, run the category's validators, reserve a version slot under a
// per-work file lock, extract the elements and finalize the manifest.
//
// Resolve and Validate are read-only and repeatable. Reserve is the only
// mutual-exclusion point: the version number is derived from a fresh on-disk
// scan while the lock is held and claimed with an exclusive manifest write,
// so concurrent publishes of the same work never share a number. Extraction
// failures abort the attempt without cleaning up partial elements; Discard
// removes them manually.
package publish
