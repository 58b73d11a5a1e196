package whitelist

import (
	"errors"
	"sync"

	"github.com/StarbaseCo/starbase-platform-smart-contracts-sub000/core/events"
)

// ErrNotOwner rejects membership mutations from anyone but the owner.
var ErrNotOwner = errors.New("whitelist: caller is not the owner")

// Whitelist is the membership oracle consulted by sale engines. Only its
// owner mutates the set; engines treat it as read-only.
type Whitelist struct {
	mu      sync.RWMutex
	owner   [20]byte
	members map[[20]byte]struct{}
	emitter events.Emitter
}

// New constructs an empty whitelist owned by the supplied account.
func New(owner [20]byte) *Whitelist {
	return &Whitelist{
		owner:   owner,
		members: make(map[[20]byte]struct{}),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (w *Whitelist) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		w.emitter = events.NoopEmitter{}
		return
	}
	w.emitter = emitter
}

// AddMany registers a batch of members.
func (w *Whitelist) AddMany(caller [20]byte, members [][20]byte) error {
	w.mu.Lock()
	if caller != w.owner {
		w.mu.Unlock()
		return ErrNotOwner
	}
	for _, member := range members {
		w.members[member] = struct{}{}
	}
	w.mu.Unlock()
	w.emitter.Emit(events.WhitelistUpdated{Added: true, Count: len(members), Members: members})
	return nil
}

// RemoveMany drops a batch of members.
func (w *Whitelist) RemoveMany(caller [20]byte, members [][20]byte) error {
	w.mu.Lock()
	if caller != w.owner {
		w.mu.Unlock()
		return ErrNotOwner
	}
	for _, member := range members {
		delete(w.members, member)
	}
	w.mu.Unlock()
	w.emitter.Emit(events.WhitelistUpdated{Added: false, Count: len(members), Members: members})
	return nil
}

// IsMember reports whether the account may participate in sales.
func (w *Whitelist) IsMember(addr [20]byte) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.members[addr]
	return ok
}

// Len returns the current membership count.
func (w *Whitelist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.members)
}
