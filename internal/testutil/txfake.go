package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/cassiomorais/txmethod/pkg/txmethod"
)

// ErrTxDone is returned when committing or rolling back a finished FakeTx.
var ErrTxDone = errors.New("fake tx already finished")

// FakeTx is an in-memory txmethod.Tx. Work registered with OnCommit runs only
// if the transaction commits.
type FakeTx struct {
	mu        sync.Mutex
	Commits   int
	Rollbacks int
	finished  bool
	onCommit  []func()

	CommitErr   error
	RollbackErr error
}

func NewFakeTx() *FakeTx {
	return &FakeTx{}
}

// OnCommit defers fn until a successful commit.
func (t *FakeTx) OnCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommit = append(t.onCommit, fn)
}

func (t *FakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	t.Commits++
	if t.finished {
		t.mu.Unlock()
		return ErrTxDone
	}
	if t.CommitErr != nil {
		t.mu.Unlock()
		return t.CommitErr
	}
	t.finished = true
	pending := t.onCommit
	t.onCommit = nil
	t.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
	return nil
}

func (t *FakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Rollbacks++
	if t.finished {
		return ErrTxDone
	}
	t.finished = true
	t.onCommit = nil
	return t.RollbackErr
}

func (t *FakeTx) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// FakeDB is an in-memory txmethod.DB that hands out FakeTx values.
type FakeDB struct {
	mu       sync.Mutex
	Begun    []*FakeTx
	BeginErr error

	// RollbackErr is copied into every transaction the DB hands out.
	RollbackErr error
}

func NewFakeDB() *FakeDB {
	return &FakeDB{}
}

func (d *FakeDB) BeginTx(ctx context.Context) (txmethod.Tx, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.BeginErr != nil {
		return nil, d.BeginErr
	}
	tx := NewFakeTx()
	tx.RollbackErr = d.RollbackErr
	d.Begun = append(d.Begun, tx)
	return tx, nil
}

// LastTx returns the most recently opened transaction, or nil.
func (d *FakeDB) LastTx() *FakeTx {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Begun) == 0 {
		return nil
	}
	return d.Begun[len(d.Begun)-1]
}
