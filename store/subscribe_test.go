package store

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func eventually(t *testing.T, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out: %s", msg)
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForSubscribers(t *testing.T, s *Store, n int) {
	t.Helper()
	eventually(t, func() bool {
		return s.subscribers.Size() == n
	}, time.Second, "waiting for subscriber count")
}

func TestSubscribe_DeliversEverySnapshotInOrder(t *testing.T) {
	s := newTestStore(t)
	s.SetEntities(counterEntity("e1", 0))

	versions := make(chan uint64, 16)
	unsubscribe := s.Subscribe(func(st State) {
		versions <- st.Version
	})
	defer unsubscribe()

	mustApply(t, s, "t1", setRemaining("e1", 1))
	s.UpdateEntity(counterEntity("e1", 2))
	s.ConfirmTransaction("t1")

	for want := uint64(1); want <= 4; want++ {
		select {
		case got := <-versions:
			if got != want {
				t.Errorf("Expected version %d, got %d", want, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for version %d", want)
		}
	}
}

func TestSubscribe_SlowListenerDoesNotBlockProducers(t *testing.T) {
	s := newTestStore(t)
	release := make(chan struct{})
	var mu sync.Mutex
	var seen []uint64

	unsubscribe := s.Subscribe(func(st State) {
		<-release
		mu.Lock()
		seen = append(seen, st.Version)
		mu.Unlock()
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			s.SetEntities(counterEntity("e1", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Producers blocked on a slow listener")
	}

	close(release)
	eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 51
	}, time.Second, "waiting for 51 deliveries")

	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		if v != uint64(i) {
			t.Fatalf("Expected version %d at position %d, got %d", i, i, v)
		}
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	s := newTestStore(t)
	calls := make(chan State, 8)
	unsubscribe := s.Subscribe(func(st State) { calls <- st })
	<-calls

	unsubscribe()
	unsubscribe()
	waitForSubscribers(t, s, 0)

	s.SetEntities(counterEntity("e1", 1))
	select {
	case st := <-calls:
		t.Fatalf("Unexpected delivery of version %d", st.Version)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSubscribeToEntity(t *testing.T) {
	s := newTestStore(t)
	type call struct {
		remaining any
		ok        bool
	}
	calls := make(chan call, 8)
	unsubscribe := s.SubscribeToEntity("e1", func(e Entity, ok bool) {
		v, _ := e.Field("game", "Counter", "remaining")
		calls <- call{remaining: v, ok: ok}
	})
	defer unsubscribe()

	s.SetEntities(counterEntity("e1", 3))
	s.SetEntities(counterEntity("other", 1))

	want := []call{{nil, false}, {3, true}, {3, true}}
	for _, w := range want {
		select {
		case got := <-calls:
			if got != w {
				t.Errorf("Expected %+v, got %+v", w, got)
			}
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for entity notification")
		}
	}
}

func TestWaitForEntityChange_ResolvesOnMatchingUpdate(t *testing.T) {
	s := newTestStore(t)
	s.SetEntities(counterEntity("e1", 0))

	type result struct {
		e   Entity
		err error
	}
	res := make(chan result, 1)
	go func() {
		e, err := s.WaitForEntityChange(context.Background(), "e1", func(e Entity, ok bool) bool {
			v, _ := e.Field("game", "Counter", "remaining")
			return ok && v == 100
		}, 0)
		res <- result{e, err}
	}()
	waitForSubscribers(t, s, 1)

	s.UpdateEntity(counterEntity("e1", 50))
	s.UpdateEntity(counterEntity("e1", 100))

	select {
	case r := <-res:
		if r.err != nil {
			t.Fatalf("Wait failed: %v", r.err)
		}
		if !reflect.DeepEqual(r.e, counterEntity("e1", 100)) {
			t.Errorf("Expected matching entity, got %v", r.e)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not resolve")
	}
	waitForSubscribers(t, s, 0)
}

func TestWaitForEntityChange_TimesOut(t *testing.T) {
	s := newTestStore(t)
	s.SetEntities(counterEntity("e1", 0))

	start := time.Now()
	_, err := s.WaitForEntityChange(context.Background(), "e1", func(e Entity, ok bool) bool {
		v, _ := e.Field("game", "Counter", "remaining")
		return v == 100
	}, 50*time.Millisecond)
	took := time.Since(start)

	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("Expected ErrWaitTimeout, got %v", err)
	}
	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *TimeoutError, got %T", err)
	}
	if timeoutErr.EntityID != "e1" {
		t.Errorf("Expected entity e1, got %s", timeoutErr.EntityID)
	}
	if timeoutErr.Timeout != 50*time.Millisecond {
		t.Errorf("Expected timeout 50ms, got %v", timeoutErr.Timeout)
	}
	if timeoutErr.Elapsed < 50*time.Millisecond {
		t.Errorf("Expected elapsed >= 50ms, got %v", timeoutErr.Elapsed)
	}
	if took >= time.Second {
		t.Errorf("Wait took %v", took)
	}
	waitForSubscribers(t, s, 0)
}

func TestWaitForEntityChange_IgnoresCurrentSnapshot(t *testing.T) {
	s := newTestStore(t)
	s.SetEntities(counterEntity("e1", 100))

	_, err := s.WaitForEntityChange(context.Background(), "e1", func(e Entity, ok bool) bool {
		return ok
	}, 30*time.Millisecond)

	if !errors.Is(err, ErrWaitTimeout) {
		t.Errorf("Expected ErrWaitTimeout, got %v", err)
	}
}

func TestWaitForEntityChange_ContextCancelled(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.WaitForEntityChange(ctx, "e1", nil, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	waitForSubscribers(t, s, 0)
}

func TestWaitForEntityChange_AbsentMatch(t *testing.T) {
	s := newTestStore(t)
	s.SetEntities(counterEntity("e1", 0))
	mustApply(t, s, "tid", func(d *Draft) {
		d.PutEntity(counterEntity("e2", 1))
	})

	res := make(chan error, 1)
	go func() {
		e, err := s.WaitForEntityChange(context.Background(), "e2", func(e Entity, ok bool) bool {
			return !ok
		}, time.Second)
		if err == nil && e.ID != "" {
			err = errors.New("expected zero entity for absent match")
		}
		res <- err
	}()
	waitForSubscribers(t, s, 1)

	mustRevert(t, s, "tid")
	if err := <-res; err != nil {
		t.Errorf("Wait failed: %v", err)
	}
}
