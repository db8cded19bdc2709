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
	"testing"
)

func TestConnAllocSerialNeverYieldsZeroOrRepeats(t *testing.T) {
	recv := &blockingRecvHalf{unblock: make(chan error)}
	raw := NewRawConn(&fakeSendHalf{}, recv, nil, 4)
	c := newConn(raw, &Config{})
	// newConn's read loop is parked forever inside recv.RecvMsg; unstick it
	// so the loop's goroutine exits instead of leaking past this test.
	defer func() { recv.unblock <- errShortCircuit{} }()

	const n = 2000
	const workers = 8

	seen := make(chan uint32, n)
	var wg sync.WaitGroup
	per := n / workers
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				seen <- c.allocSerial()
			}
		}()
	}
	wg.Wait()
	close(seen)

	distinct := map[uint32]bool{}
	for s := range seen {
		if s == 0 {
			t.Fatalf("allocSerial returned reserved value 0")
		}
		if distinct[s] {
			t.Fatalf("allocSerial returned duplicate serial %d", s)
		}
		distinct[s] = true
	}
	if len(distinct) != workers*per {
		t.Fatalf("got %d distinct serials, want %d", len(distinct), workers*per)
	}
}

// TestConnCallFailsWhenConnectionDisconnects exercises disconnect
// propagation: a Call blocked waiting for a reply must unblock with an
// error as soon as the raw connection reports a fatal read error, rather
// than hanging forever.
func TestConnCallFailsWhenConnectionDisconnects(t *testing.T) {
	recv := &blockingRecvHalf{unblock: make(chan error)}
	raw := NewRawConn(&fakeSendHalf{}, recv, nil, 4)
	c := newConn(raw, &Config{})
	defer c.Close()

	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		_, err := c.Call(context.Background(), "com.example.Dest", "/foo", "com.example.Iface", "Method", "", nil, nil)
		done <- result{err: err}
	}()

	recv.unblock <- errShortCircuit{}

	r := <-done
	if r.err == nil {
		t.Fatalf("Call returned nil error after disconnect")
	}
}

// errShortCircuit is a sentinel error standing in for a real I/O failure;
// RawConn.translateIOErr wraps anything that isn't io.EOF/ErrUnexpectedEOF
// as KindInputOutput and fails the connection either way, which is all
// this test needs.
type errShortCircuit struct{}

func (errShortCircuit) Error() string { return "short circuit" }
