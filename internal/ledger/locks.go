package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// holdingLocks hands out one mutex per holding so the read-compute-write of
// (quantity, avg_price) is serialized in-process. Entries are kept for the
// life of the process; the set of holdings touched by one instance is small.
type holdingLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newHoldingLocks() *holdingLocks {
	return &holdingLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (h *holdingLocks) get(id uuid.UUID) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[id]
	if !ok {
		l = &sync.Mutex{}
		h.locks[id] = l
	}
	return l
}
