// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dbuscore

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

// Stream delivers signals matched by one AddMatch rule. Its queue is
// bounded; once full, the oldest unread signal is dropped to make room
// for the newest rather than blocking the reader loop (§4.H, §9 — a slow
// subscriber must never stall the connection).
type Stream struct {
	ch       chan *wire.Message
	dropped  uint64
	rule     string
	criteria matchCriteria
	onDrop   func()
	cancel   func(context.Context) error

	// mu guards closed and serializes deliver() against closeCh(), since a
	// send on a closed channel always wins a select against default and
	// would otherwise panic the instant Unsubscribe races a dispatching
	// signal. ch itself is never reassigned after construction, so reading
	// it (C, Next, Drain) needs no lock; only sending to it does.
	mu     sync.Mutex
	refs   int
	closed bool
}

// C returns the channel of matched signals. It closes when the stream is
// cancelled or the connection disconnects.
func (s *Stream) C() <-chan *wire.Message { return s.ch }

// Dropped reports how many signals this stream has discarded because its
// queue was full when they arrived.
func (s *Stream) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *Stream) deliver(msg *wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.countDrop()
		return
	}

	select {
	case s.ch <- msg:
		return
	default:
	}

	// Drop the oldest, make room, and retry once. A second full queue
	// after that only happens if another goroutine is racing us to
	// drain, in which case counting this one as dropped is still
	// correct: the reader loop never blocks on a slow subscriber.
	select {
	case <-s.ch:
		s.countDrop()
	default:
	}
	select {
	case s.ch <- msg:
	default:
		s.countDrop()
	}
}

func (s *Stream) countDrop() {
	atomic.AddUint64(&s.dropped, 1)
	if s.onDrop != nil {
		s.onDrop()
	}
}

func (s *Stream) closeCh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// matchRegistry tracks live streams keyed by match rule text, reference
// counted so two Subscribe calls for the same rule share one AddMatch on
// the bus and only issue RemoveMatch once both cancel (§4.H).
type matchRegistry struct {
	mu      sync.Mutex
	streams map[string]*Stream
}

func newMatchRegistry() *matchRegistry {
	return &matchRegistry{streams: map[string]*Stream{}}
}

// acquire returns the existing stream for rule, incrementing its
// refcount, or (nil, false) if none exists yet and the caller must create
// one and call register.
func (m *matchRegistry) acquire(rule string) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[rule]
	if ok {
		s.mu.Lock()
		s.refs++
		s.mu.Unlock()
	}
	return s, ok
}

func (m *matchRegistry) register(s *Stream) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs = 1
	m.streams[s.rule] = s
}

// release decrements rule's refcount and reports whether it dropped to
// zero, meaning the caller owns the last reference and must issue
// RemoveMatch and tear the stream down.
func (m *matchRegistry) release(rule string) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.streams[rule]
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	s.refs--
	last := s.refs == 0
	s.mu.Unlock()
	if last {
		delete(m.streams, rule)
	}
	return s, last
}

// dispatch fans a signal out to every stream whose criteria matches,
// since two overlapping rules (e.g. a broad one and a narrow one) can
// both be live on the same connection and both want the same signal.
func (m *matchRegistry) dispatch(msg *wire.Message) {
	m.mu.Lock()
	matched := make([]*Stream, 0, 1)
	for _, s := range m.streams {
		if s.criteria.matches(msg) {
			matched = append(matched, s)
		}
	}
	m.mu.Unlock()
	for _, s := range matched {
		s.deliver(msg)
	}
}

// closeAll closes every live stream, used when the connection
// disconnects so no Subscribe caller blocks forever on C().
func (m *matchRegistry) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for rule, s := range m.streams {
		s.closeCh()
		delete(m.streams, rule)
	}
}
