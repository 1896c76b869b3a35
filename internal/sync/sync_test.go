package sync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alfredjeanlab/tix/internal/events"
	"github.com/alfredjeanlab/tix/internal/ledger/ledgertest"
	"github.com/alfredjeanlab/tix/internal/model"
)

// mockDestination records calls to Write.
type mockDestination struct {
	mu     sync.Mutex
	writes []model.Snapshot
	err    error
}

func (d *mockDestination) Write(_ context.Context, snap model.Snapshot) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writes = append(d.writes, snap)
	return d.err
}

func (d *mockDestination) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

type countingChecker struct{ calls atomic.Int64 }

func (c *countingChecker) CheckNetwork(context.Context) (bool, error) {
	c.calls.Add(1)
	return false, nil
}

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a resync")
		return Outcome{}
	}
}

func TestSchedulerStartStop(t *testing.T) {
	c := ledgertest.New()
	seed(c, 2, bob)
	dest := &mockDestination{}

	sched := NewScheduler(newTestReader(newFakeSession(c, bob)), 50*time.Millisecond, quietLogger(),
		WithDestinations(dest))
	sched.Start()

	// Wait for at least the initial resync + one tick.
	time.Sleep(120 * time.Millisecond)
	sched.Stop()

	if n := dest.count(); n < 2 {
		t.Fatalf("expected at least 2 writes, got %d", n)
	}
	if got := len(dest.writes[0].Events); got != 2 {
		t.Errorf("snapshot events = %d, want 2", got)
	}
}

func TestSchedulerStop_NoStart(t *testing.T) {
	sched := NewScheduler(newTestReader(newFakeSession(ledgertest.New(), bob)), time.Minute, quietLogger())
	// Stop without Start should not panic.
	sched.Stop()
}

func TestSchedulerTrigger(t *testing.T) {
	c := ledgertest.New()
	outcomes := make(chan Outcome, 4)
	checker := &countingChecker{}
	pub := &events.MemoryPublisher{}

	sched := NewScheduler(newTestReader(newFakeSession(c, bob)), 0, quietLogger(),
		WithNetworkChecker(checker),
		WithPublisher(pub),
		WithOnSync(func(o Outcome) { outcomes <- o }))
	sched.Start()
	defer sched.Stop()

	if o := waitOutcome(t, outcomes); o.Err != nil || len(o.Snapshot.Events) != 0 {
		t.Fatalf("initial resync = %+v", o)
	}

	seed(c, 1, bob)
	sched.Trigger()
	o := waitOutcome(t, outcomes)
	if o.Err != nil || len(o.Snapshot.Events) != 1 {
		t.Fatalf("triggered resync = %+v", o)
	}

	if got := checker.calls.Load(); got != 2 {
		t.Errorf("CheckNetwork calls = %d, want 2", got)
	}
	published := pub.Events()
	if len(published) != 2 || published[1].Topic != events.TopicCacheSynced {
		t.Fatalf("published = %v", pub.Topics())
	}
	var msg events.CacheSynced
	if err := json.Unmarshal(published[1].Data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Events != 1 || msg.Account != bob || msg.NetworkID != 5777 {
		t.Errorf("CacheSynced = %+v", msg)
	}
}

func TestSchedulerNotReady(t *testing.T) {
	sess := newFakeSession(ledgertest.New(), bob)
	sess.st.Ledger = nil
	dest := &mockDestination{}

	sched := NewScheduler(newTestReader(sess), 0, quietLogger(), WithDestinations(dest))
	err := sched.SyncNow(context.Background())
	if !errors.Is(err, model.ErrNotReady) {
		t.Fatalf("SyncNow err = %v, want ErrNotReady", err)
	}
	if dest.count() != 0 {
		t.Error("destination written without a resync")
	}
}

func TestSchedulerDestinationFailureContinues(t *testing.T) {
	c := ledgertest.New()
	seed(c, 1, bob)
	failing := &mockDestination{err: errors.New("bucket missing")}
	ok := &mockDestination{}

	sched := NewScheduler(newTestReader(newFakeSession(c, bob)), 0, quietLogger(),
		WithDestinations(failing, ok))
	if err := sched.SyncNow(context.Background()); err != nil {
		t.Fatalf("SyncNow: %v", err)
	}
	if failing.count() != 1 || ok.count() != 1 {
		t.Errorf("writes = %d/%d, want 1/1", failing.count(), ok.count())
	}
}

func TestSchedulerFailedResyncReported(t *testing.T) {
	c := ledgertest.New()
	seed(c, 2, bob)
	c.SetReadHook(func(context.Context, string, uint64) error { return errors.New("down") })
	var got Outcome

	sched := NewScheduler(newTestReader(newFakeSession(c, bob)), 0, quietLogger(),
		WithOnSync(func(o Outcome) { got = o }))
	err := sched.SyncNow(context.Background())

	var syncErr *model.SyncError
	if !errors.As(err, &syncErr) || !errors.As(got.Err, &syncErr) {
		t.Fatalf("err = %v, outcome = %+v", err, got)
	}
}
