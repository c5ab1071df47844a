// Package registry is the process-wide handle that lets independently
// constructed front-ends converge on one live RecordStore instead of running
// two diverging copies. The console registers its store at startup; when the
// web server is launched in-process later it finds that store here and wires
// its own notifier into it.
package registry

import (
	"sync"

	"github.com/dharsanguruparan/CrimeVault/internal/notify"
	"github.com/dharsanguruparan/CrimeVault/internal/store"
)

var (
	mu          sync.Mutex
	recordStore *store.RecordStore
	notifier    *notify.Notifier
)

// SetRecordStore registers the shared store. The first writer wins; later
// calls are ignored so a second front-end cannot displace the live instance.
// The return value reports whether the registration took.
func SetRecordStore(s *store.RecordStore) bool {
	mu.Lock()
	defer mu.Unlock()
	if recordStore != nil {
		return false
	}
	recordStore = s
	return true
}

// RecordStore returns the shared store, or nil when none is registered.
func RecordStore() *store.RecordStore {
	mu.Lock()
	defer mu.Unlock()
	return recordStore
}

// SetNotifier registers the live transport. Last writer wins: the notifier
// simply points at whichever transport is currently up.
func SetNotifier(n *notify.Notifier) {
	mu.Lock()
	defer mu.Unlock()
	notifier = n
}

// Notifier returns the current transport, or nil.
func Notifier() *notify.Notifier {
	mu.Lock()
	defer mu.Unlock()
	return notifier
}

// Reset clears both handles. Only tests use this.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	recordStore = nil
	notifier = nil
}
