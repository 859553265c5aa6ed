package model

import "github.com/m-mizutani/goerr/v2"

// Error taxonomy shared by coordinator, memory and agents. Callers classify
// with errors.Is.
var (
	// ErrAgentFailed means an agent adapter returned an error. The domain is
	// marked unavailable.
	ErrAgentFailed = goerr.New("agent failed")

	// ErrAgentTimeout means an agent adapter did not answer in time.
	ErrAgentTimeout = goerr.New("agent timed out")

	// ErrMemoryReadDegraded means a read failed and defaults were used.
	ErrMemoryReadDegraded = goerr.New("memory read degraded")

	// ErrMemoryWriteFailed means the write-back did not land.
	ErrMemoryWriteFailed = goerr.New("memory write failed")

	// ErrRequestInvalid is fatal for the request and nothing is written.
	ErrRequestInvalid = goerr.New("request invalid")

	// ErrAllDomainsUnavailable means every selected agent failed.
	ErrAllDomainsUnavailable = goerr.New("all domains unavailable")

	// ErrRequestCancelled means the caller cancelled before fusion completed.
	ErrRequestCancelled = goerr.New("request cancelled")

	// ErrNotFound is returned by repositories for missing records.
	ErrNotFound = goerr.New("not found")
)
