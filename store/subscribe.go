package store

import (
	"context"
	"sync"
	"time"
)

// subscriber delivers snapshots to one listener from its own goroutine. Snapshots are
// queued without bound so producers never wait on a slow listener.
type subscriber struct {
	fn     func(State)
	mu     sync.Mutex
	queue  []State
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newSubscriber(fn func(State)) *subscriber {
	return &subscriber{
		fn:     fn,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (sub *subscriber) enqueue(st State) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, st)
	sub.mu.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscriber) next() (State, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.queue) == 0 {
		return State{}, false
	}
	st := sub.queue[0]
	sub.queue[0] = State{}
	sub.queue = sub.queue[1:]
	return st, true
}

func (sub *subscriber) run() {
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
		}
		for {
			st, ok := sub.next()
			if !ok {
				break
			}
			select {
			case <-sub.done:
				return
			default:
			}
			sub.fn(st)
		}
	}
}

func (sub *subscriber) stop() {
	sub.once.Do(func() { close(sub.done) })
}

// publish fans a snapshot out to every subscriber. Callers hold s.mu, which keeps the
// delivery order equal to the install order.
func (s *Store) publish(st State) {
	s.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		sub.enqueue(st)
		return true
	})
}

// Subscribe registers listener for every new snapshot, starting with the current one.
// Snapshots arrive in install order and none is skipped. The returned function
// deregisters the listener; calling it more than once is harmless.
func (s *Store) Subscribe(listener func(State)) (unsubscribe func()) {
	return s.subscribe(listener, true)
}

func (s *Store) subscribe(listener func(State), includeCurrent bool) func() {
	sub := newSubscriber(listener)
	id := s.nextSubscriber.Add(1)

	// registering under the writer lock means no snapshot is missed or delivered twice
	s.mu.Lock()
	if includeCurrent {
		sub.enqueue(*s.state.Load())
	}
	s.subscribers.Store(id, sub)
	s.mu.Unlock()

	s.metrics.subscribers(s.subscribers.Size())
	go sub.run()

	return func() {
		if _, loaded := s.subscribers.LoadAndDelete(id); loaded {
			s.metrics.subscribers(s.subscribers.Size())
		}
		sub.stop()
	}
}

// SubscribeToEntity invokes listener with the value of one entity (ok is false when
// absent) on every snapshot, whether or not that entity changed.
func (s *Store) SubscribeToEntity(entityID string, listener func(e Entity, ok bool)) (unsubscribe func()) {
	return s.Subscribe(func(st State) {
		e, ok := st.Entities[entityID]
		listener(e, ok)
	})
}

// WaitForEntityChange blocks until a change notification satisfies predicate for
// entityID and returns the matching value (the zero Entity when the match is an
// absent entity). Only snapshots installed after the call are evaluated.
//
// A non-positive timeout uses Config.WaitTimeout. When the budget runs out the
// returned error is a *TimeoutError; cancelling ctx returns ctx.Err(). The listener is
// removed in every case.
func (s *Store) WaitForEntityChange(ctx context.Context, entityID string, predicate EntityPredicate, timeout time.Duration) (Entity, error) {
	matched, stop := s.watch(entityID, predicate)
	defer stop()
	return s.await(ctx, entityID, matched, timeout)
}

// watch registers a one-shot predicate listener that skips the current snapshot.
func (s *Store) watch(entityID string, predicate EntityPredicate) (<-chan Entity, func()) {
	if predicate == nil {
		predicate = func(Entity, bool) bool { return true }
	}
	matched := make(chan Entity, 1)
	var once sync.Once
	stop := s.subscribe(func(st State) {
		e, ok := st.Entities[entityID]
		if predicate(e, ok) {
			once.Do(func() { matched <- e })
		}
	}, false)
	return matched, stop
}

func (s *Store) await(ctx context.Context, entityID string, matched <-chan Entity, timeout time.Duration) (Entity, error) {
	if timeout <= 0 {
		timeout = s.cfg.WaitTimeout
	}
	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-matched:
		return e, nil
	case <-timer.C:
		s.metrics.waitTimeout()
		return Entity{}, &TimeoutError{
			EntityID: entityID,
			Timeout:  timeout,
			Elapsed:  time.Since(start),
		}
	case <-ctx.Done():
		return Entity{}, ctx.Err()
	}
}
