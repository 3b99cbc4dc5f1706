// Package workers runs the client's background maintenance: periodic jobs
// such as the session expiry sweep, grouped in a [Workers] aggregate that is
// started and stopped with the application.
package workers

import "context"

// Worker is a background task with an explicit lifecycle.
//
// Start must not block; the work runs in goroutines owned by the worker
// until ctx is cancelled or Stop is called. Stop blocks until those
// goroutines have exited and is safe to call on a stopped worker.
type Worker interface {
	Start(ctx context.Context)
	Stop()
}

// Task is one run of a periodic job.
type Task func(ctx context.Context)
