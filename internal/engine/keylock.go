package engine

import "sync"

// driverLocks hands out one mutex per driver so mutations for a single
// driver serialize while different drivers proceed in parallel. No global
// lock is held across an operation; the registry lock only guards the map.
type driverLocks struct {
	mu    sync.RWMutex
	locks map[int64]*sync.Mutex
}

func newDriverLocks() *driverLocks {
	return &driverLocks{locks: make(map[int64]*sync.Mutex)}
}

func (d *driverLocks) get(driverID int64) *sync.Mutex {
	d.mu.RLock()
	l, exists := d.locks[driverID]
	d.mu.RUnlock()
	if exists {
		return l
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if l, exists = d.locks[driverID]; !exists {
		l = &sync.Mutex{}
		d.locks[driverID] = l
	}
	return l
}

// Lock acquires the driver's mutex and returns the unlock func.
func (d *driverLocks) Lock(driverID int64) func() {
	l := d.get(driverID)
	l.Lock()
	return l.Unlock
}
