// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInitFailed indicates the pipeline could not obtain its initial shared
// context. Runs abort on this error; no retry is attempted.
var ErrInitFailed = errors.New("pipeline initialization failed")

// ErrPersistence indicates an artifact write failed. Partial state on disk is
// acceptable, but the run must not be reported as successful.
var ErrPersistence = errors.New("artifact persistence failed")
