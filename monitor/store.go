package monitor

import (
	"sync/atomic"

	"github.com/celerymon/celerymon/model"
)

// Store holds the current snapshot behind an atomic pointer. Load never
// blocks and never observes a partially written snapshot; publish swaps
// the whole pointer at once. The refresher is the only caller of publish;
// anything else that needs to derive a new snapshot from the current one
// must go through update so a concurrent publish is never regressed.
type Store struct {
	current atomic.Pointer[model.Snapshot]
}

// NewStore returns a store primed with an empty snapshot, so Load is safe
// before the first refresh cycle completes.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&model.Snapshot{})
	return s
}

// Load returns the current snapshot. The returned value is shared and must
// be treated as read-only.
func (s *Store) Load() *model.Snapshot {
	return s.current.Load()
}

// publish replaces the current snapshot. Only the refresher calls this;
// the snapshot must not be mutated afterwards.
func (s *Store) publish(snap *model.Snapshot) {
	s.current.Store(snap)
}

// update derives a new snapshot from the current one and publishes it,
// retrying when a publish lands between the load and the swap. fn may
// return nil to abandon the update; it must not mutate prev.
func (s *Store) update(fn func(prev *model.Snapshot) *model.Snapshot) {
	for {
		prev := s.current.Load()
		next := fn(prev)
		if next == nil {
			return
		}
		if s.current.CompareAndSwap(prev, next) {
			return
		}
	}
}
