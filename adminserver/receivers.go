package adminserver

import (
	"sync"

	"github.com/marketlink/marketlink/moldudp64"
)

// ReceiverRegistry tracks the live MoldUDP64 receivers a daemon has started,
// keyed by a caller-chosen name (typically the multicast feed name).
// Grounded on the same map+RWMutex registry shape as soupbin.SessionsManager.
type ReceiverRegistry struct {
	mu        sync.RWMutex
	receivers map[string]*moldudp64.Receiver
}

// NewReceiverRegistry returns an empty registry.
func NewReceiverRegistry() *ReceiverRegistry {
	return &ReceiverRegistry{receivers: make(map[string]*moldudp64.Receiver)}
}

// Add registers r under name, replacing any previous receiver with that name.
func (reg *ReceiverRegistry) Add(name string, r *moldudp64.Receiver) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.receivers[name] = r
}

// Remove drops the receiver registered under name, if any.
func (reg *ReceiverRegistry) Remove(name string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.receivers, name)
}

// Snapshot returns a defensive copy of the name->receiver map.
func (reg *ReceiverRegistry) Snapshot() map[string]*moldudp64.Receiver {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make(map[string]*moldudp64.Receiver, len(reg.receivers))
	for k, v := range reg.receivers {
		out[k] = v
	}
	return out
}
