// Package task manages task manifests and their category buckets inside a
// project's database tree.
package task
