// Package lock provides per-fingerprint mutual exclusion for the ingest
// path, so concurrent reports of the same condition cannot race the
// find-or-create step into duplicate active alerts.
package lock

import (
	"context"
)

// FingerprintLocker serializes work per alert fingerprint.
// Implementations must be safe for concurrent use.
type FingerprintLocker interface {
	// Lock blocks until the fingerprint's critical section is available or
	// ctx is done, and returns the release function. The release function
	// must be called exactly once.
	Lock(ctx context.Context, fingerprint string) (func(), error)
}
