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
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

func TestMatchRegistry(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type MatchRegistryTest struct {
	reg *matchRegistry
}

func init() { RegisterTestSuite(&MatchRegistryTest{}) }

func (t *MatchRegistryTest) SetUp(ti *TestInfo) {
	t.reg = newMatchRegistry()
}

func signal(iface, member, path string) *wire.Message {
	return &wire.Message{
		Type:   wire.MsgSignal,
		Fields: wire.Fields{Interface: iface, Member: member, Path: path},
	}
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *MatchRegistryTest) AcquireOnUnknownRuleMisses() {
	s, ok := t.reg.acquire("type='signal'")
	ExpectFalse(ok)
	ExpectTrue(s == nil)
}

func (t *MatchRegistryTest) RegisterThenAcquireSharesOneStream() {
	rule := "type='signal',interface='com.example.Iface'"
	s := &Stream{ch: make(chan *wire.Message, 4), rule: rule, criteria: parseMatchCriteria(rule)}
	t.reg.register(s)

	got, ok := t.reg.acquire(rule)
	AssertTrue(ok)
	ExpectEq(s, got)
	ExpectEq(2, got.refs)
}

func (t *MatchRegistryTest) ReleaseDropsToZeroOnlyOnLastReference() {
	rule := "type='signal'"
	s := &Stream{ch: make(chan *wire.Message, 4), rule: rule, criteria: parseMatchCriteria(rule)}
	t.reg.register(s)
	t.reg.acquire(rule)

	_, last := t.reg.release(rule)
	ExpectFalse(last)

	_, last = t.reg.release(rule)
	ExpectTrue(last)

	_, ok := t.reg.acquire(rule)
	ExpectFalse(ok)
}

func (t *MatchRegistryTest) DispatchDeliversToAllMatchingOverlappingRules() {
	broad := &Stream{ch: make(chan *wire.Message, 4), rule: "type='signal'", criteria: parseMatchCriteria("type='signal'")}
	narrow := &Stream{
		ch:       make(chan *wire.Message, 4),
		rule:     "type='signal',member='Changed'",
		criteria: parseMatchCriteria("type='signal',member='Changed'"),
	}
	t.reg.register(broad)
	t.reg.register(narrow)

	msg := signal("com.example.Iface", "Changed", "/foo")
	t.reg.dispatch(msg)

	AssertEq(1, len(broad.ch))
	AssertEq(1, len(narrow.ch))
	ExpectEq(msg, <-broad.ch)
	ExpectEq(msg, <-narrow.ch)
}

func (t *MatchRegistryTest) DispatchSkipsNonMatchingRule() {
	s := &Stream{
		ch:       make(chan *wire.Message, 4),
		rule:     "type='signal',member='Changed'",
		criteria: parseMatchCriteria("type='signal',member='Changed'"),
	}
	t.reg.register(s)

	t.reg.dispatch(signal("com.example.Iface", "SomethingElse", "/foo"))

	ExpectEq(0, len(s.ch))
}

func (t *MatchRegistryTest) StreamDropsOldestWhenQueueIsFull() {
	s := &Stream{ch: make(chan *wire.Message, 1), rule: "type='signal'", criteria: parseMatchCriteria("type='signal'")}
	t.reg.register(s)

	first := signal("a", "b", "/x")
	second := signal("a", "b", "/x")
	t.reg.dispatch(first)
	t.reg.dispatch(second)

	AssertEq(1, len(s.ch))
	ExpectEq(second, <-s.ch)
	ExpectThat(s.Dropped(), Equals(uint64(1)))
}

func (t *MatchRegistryTest) CloseAllClosesEveryStream() {
	s := &Stream{ch: make(chan *wire.Message, 4), rule: "type='signal'", criteria: parseMatchCriteria("type='signal'")}
	t.reg.register(s)
	ch := s.ch

	t.reg.closeAll()

	_, ok := <-ch
	ExpectFalse(ok)
}
