// Package services defines the shared error taxonomy for shutdown steps and
// the context plumbing that correlates log lines with a single run.
//
// The classes mirror how failures behave on disk: transient failures are
// rediscovered and retried by the next run, skipped files stay where they
// are by design, and unresponsive services are escalated but never abort
// the sequence.
package services
