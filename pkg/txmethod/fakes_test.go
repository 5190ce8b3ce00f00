package txmethod

import (
	"context"
	"sync"
)

type fakeTx struct {
	mu          sync.Mutex
	name        string
	commits     int
	rollbacks   int
	finished    bool
	commitErr   error
	rollbackErr error
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	if t.commitErr != nil {
		return t.commitErr
	}
	t.finished = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	if t.rollbackErr != nil {
		return t.rollbackErr
	}
	t.finished = true
	return nil
}

func (t *fakeTx) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

type fakeDB struct {
	mu       sync.Mutex
	begun    []*fakeTx
	beginErr error
	next     *fakeTx
}

func (d *fakeDB) BeginTx(ctx context.Context) (Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	tx := d.next
	if tx == nil {
		tx = &fakeTx{name: "local"}
	}
	d.next = nil
	d.begun = append(d.begun, tx)
	return tx, nil
}

func (d *fakeDB) last() *fakeTx {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.begun) == 0 {
		return nil
	}
	return d.begun[len(d.begun)-1]
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (o *recordingObserver) Observe(ctx context.Context, e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) kinds() []EventKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	kinds := make([]EventKind, 0, len(o.events))
	for _, e := range o.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}
