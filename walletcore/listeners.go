// Copyright (c) 2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package walletcore

import "sync"

// Executor runs fn, on whatever schedule the caller prefers: inline,
// on a goroutine, or on a dedicated dispatch queue.
type Executor func(fn func())

func inlineExecutor(fn func()) { fn() }

// registration pairs a handler with the executor it must run on,
// mirroring the original PledgingWallet's ListenerRegistration<Handler>
// (addOnPledgeHandler(handler, executor), a CopyOnWriteArrayList of
// these per event).
type registration struct {
	id       uint64
	handler  func(*PledgeEntry)
	executor Executor
}

// listenerSet is an independently registerable, independently executed
// fan-out list for one wallet event. Any number of callers may register a
// handler, each with its own Executor, and later unregister it.
type listenerSet struct {
	mu     sync.Mutex
	nextID uint64
	regs   []registration
}

// add registers handler to run on executor (inlineExecutor if nil)
// whenever this event fires, and returns a function that removes it.
func (s *listenerSet) add(handler func(*PledgeEntry), executor Executor) func() {
	if executor == nil {
		executor = inlineExecutor
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.regs = append(s.regs, registration{id: id, handler: handler, executor: executor})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, r := range s.regs {
			if r.id == id {
				s.regs = append(s.regs[:i:i], s.regs[i+1:]...)
				return
			}
		}
	}
}

// dispatch fires entry on every registered handler, each on its own
// executor, as PledgingWallet.commitPledge dispatches onPledgeHandlers.
func (s *listenerSet) dispatch(entry *PledgeEntry) {
	s.mu.Lock()
	regs := append([]registration(nil), s.regs...)
	s.mu.Unlock()

	for _, r := range regs {
		handler, executor := r.handler, r.executor
		executor(func() { handler(entry) })
	}
}
