// Package status carries the tagged result type used by every fallible core
// operation.
//
// The UI and DCC layers consume (code, message) pairs; Status keeps that
// surface through Code() while giving library callers an error kind they can
// match on. Statuses wrap their causes so errors.Is/As keep working across
// package boundaries.
package status
