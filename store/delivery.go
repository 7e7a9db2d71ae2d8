package store

import "sync"

// delivery tracks what a subscription has last seen so re-computed result
// sets are only pushed when they actually changed, and serializes pushes
// so each subscription observes its updates in order.
type delivery struct {
	mu        sync.Mutex
	seq       uint64
	lastSeq   uint64
	delivered bool
	last      Snapshot
}

// next allocates the ordering ticket for a snapshot about to be computed.
// Callers take the ticket while the snapshot is still consistent with the
// store, so a stale result set can never overwrite a newer one.
func (d *delivery) next() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return d.seq
}

// push delivers a snapshot unless a newer one already went out. The
// returned value is the callback's recovered panic, nil otherwise; a
// panicking callback must not take down the delivery path for the
// remaining subscriptions.
func (d *delivery) push(seq uint64, fn func(Snapshot), snapshot Snapshot) (panicked interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seq < d.lastSeq {
		return nil
	}
	d.lastSeq = seq

	if d.delivered && snapshotEqual(d.last, snapshot) {
		return nil
	}
	d.delivered = true
	d.last = snapshot

	defer func() {
		panicked = recover()
	}()
	fn(snapshot)
	return nil
}
