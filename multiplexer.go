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
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/syncutil"
	"github.com/jacobsa/timeutil"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

// Conn is the connection multiplexer: it owns the raw connection's single
// reader, allocates serials, correlates method replies with their calls,
// and fans signals out to subscribers (§4.H). Everything above this type
// (Call, Subscribe, Close) is safe to use from many goroutines at once.
type Conn struct {
	id     string
	raw    *RawConn
	serial uint32 // atomic; allocSerial skips zero

	pendingMu syncutil.InvariantMutex
	pending   map[uint32]chan *wire.Message // GUARDED_BY(pendingMu)

	matches *matchRegistry

	uniqueName atomic.Value // string

	log   *logrus.Logger
	clock timeutil.Clock

	metrics *Metrics

	readerDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
	closeMu    sync.Mutex
}

// newConn builds a Conn around an already-open RawConn and starts its
// reader goroutine. It does not perform the Hello call; see hello.go.
func newConn(raw *RawConn, cfg *Config) *Conn {
	c := &Conn{
		id:         xid.New().String(),
		raw:        raw,
		pending:    map[uint32]chan *wire.Message{},
		matches:    newMatchRegistry(),
		log:        cfg.logger(),
		clock:      cfg.clock(),
		metrics:    newMetrics(),
		readerDone: make(chan struct{}),
	}
	c.uniqueName.Store("")
	c.pendingMu.Lock()
	c.pendingMu.CheckInvariants = func() {
		for serial := range c.pending {
			if serial == 0 {
				panic("serial 0 is reserved and must never be a pending call key")
			}
		}
	}
	c.pendingMu.Unlock()
	go c.readLoop()
	return c
}

// ID is an opaque, process-local identifier for this connection, useful
// for correlating log lines across the lifetime of one Conn.
func (c *Conn) ID() string { return c.id }

// Metrics returns this connection's prometheus.Collector so callers can
// register it with their own registry.
func (c *Conn) Metrics() *Metrics { return c.metrics }

func (c *Conn) allocSerial() uint32 {
	for {
		s := atomic.AddUint32(&c.serial, 1)
		if s != 0 {
			return s
		}
		// Wrapped exactly onto zero, which is reserved to mean "serial
		// not yet assigned"; skip it and try the next one.
	}
}

// UniqueName returns the bus-assigned unique name, or "" before Hello has
// completed.
func (c *Conn) UniqueName() string {
	return c.uniqueName.Load().(string)
}

func (c *Conn) setUniqueName(name string) {
	c.uniqueName.Store(name)
}

// Call sends a method call and blocks until the matching reply arrives,
// ctx is done, or the connection disconnects. A nil signature/body sends
// a call with no body.
func (c *Conn) Call(ctx context.Context, dest, path, iface, member, signature string, body []byte, fds []int) (reply *wire.Message, err error) {
	var report reqtrace.ReportFunc
	ctx, report = reqtrace.StartSpan(ctx, fmt.Sprintf("dbuscore.Call %s.%s", iface, member))
	defer func() { report(err) }()

	serial := c.allocSerial()
	fields := wire.Fields{
		Path:        path,
		Interface:   iface,
		Member:      member,
		Destination: dest,
	}
	buf, err := wire.Encode(wire.MsgMethodCall, 0, fields, signature, body, fds)
	if err != nil {
		return nil, wrapErr(KindInvalidField, err, "encoding method call")
	}
	if err := wire.PatchSerial(buf, serial); err != nil {
		return nil, wrapErr(KindInputOutput, err, "patching serial")
	}

	replyCh := make(chan *wire.Message, 1)
	c.pendingMu.Lock()
	c.pending[serial] = replyCh
	c.metrics.setPendingCalls(len(c.pending))
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, serial)
		c.metrics.setPendingCalls(len(c.pending))
		c.pendingMu.Unlock()
	}()

	if err := c.raw.Enqueue(ctx, buf, fds); err != nil {
		return nil, c.translateErr(err)
	}

	select {
	case reply := <-replyCh:
		if reply == nil {
			return nil, c.translateErr(c.raw.Err())
		}
		if reply.Type == wire.MsgError {
			msg, err := decodeSingleString(reply.Body)
			if err != nil {
				// Error replies with no body, or a body that isn't the
				// conventional lone STRING, still need to surface
				// something: fall back to the raw bytes rather than
				// losing the reply entirely.
				msg = string(reply.Body)
			}
			return nil, MethodError(reply.Fields.ErrorName, msg)
		}
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.readerDone:
		return nil, c.translateErr(c.raw.Err())
	}
}

// CallNoReply sends a method call with the no-reply-expected flag set and
// does not wait for or expect a response.
func (c *Conn) CallNoReply(ctx context.Context, dest, path, iface, member, signature string, body []byte, fds []int) error {
	serial := c.allocSerial()
	fields := wire.Fields{Path: path, Interface: iface, Member: member, Destination: dest}
	buf, err := wire.Encode(wire.MsgMethodCall, wire.FlagNoReplyExpected, fields, signature, body, fds)
	if err != nil {
		return wrapErr(KindInvalidField, err, "encoding method call")
	}
	if err := wire.PatchSerial(buf, serial); err != nil {
		return wrapErr(KindInputOutput, err, "patching serial")
	}
	return c.translateErr(c.raw.Enqueue(ctx, buf, fds))
}

// EmitSignal sends a signal message; signals never have replies.
func (c *Conn) EmitSignal(ctx context.Context, path, iface, member, signature string, body []byte) error {
	serial := c.allocSerial()
	fields := wire.Fields{Path: path, Interface: iface, Member: member}
	buf, err := wire.Encode(wire.MsgSignal, 0, fields, signature, body, nil)
	if err != nil {
		return wrapErr(KindInvalidField, err, "encoding signal")
	}
	if err := wire.PatchSerial(buf, serial); err != nil {
		return wrapErr(KindInputOutput, err, "patching serial")
	}
	return c.translateErr(c.raw.Enqueue(ctx, buf, nil))
}

// Subscribe registers interest in signals matching rule (D-Bus match rule
// grammar, e.g. "type='signal',interface='org.foo.Bar'"), issuing AddMatch
// on first registration and sharing the stream across repeat calls with
// the identical rule text (§4.H reference counting).
func (c *Conn) Subscribe(ctx context.Context, rule string, queueLen int) (*Stream, error) {
	if s, ok := c.matches.acquire(rule); ok {
		return s, nil
	}

	if queueLen <= 0 {
		queueLen = DefaultStreamQueueLen
	}
	s := &Stream{
		ch:       make(chan *wire.Message, queueLen),
		rule:     rule,
		criteria: parseMatchCriteria(rule),
		onDrop:   c.metrics.incMatchRuleDropped,
		cancel:   func(ctx context.Context) error { return c.Unsubscribe(ctx, rule) },
	}

	body, sig := encodeSingleString(rule)
	if _, err := c.Call(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", "AddMatch", sig, body, nil); err != nil {
		return nil, err
	}

	c.matches.register(s)
	return s, nil
}

// Unsubscribe releases one reference to rule's stream, issuing RemoveMatch
// and closing the stream once the last reference is released.
func (c *Conn) Unsubscribe(ctx context.Context, rule string) error {
	s, last := c.matches.release(rule)
	if s == nil {
		return nil
	}
	if !last {
		return nil
	}
	s.closeCh()

	body, sig := encodeSingleString(rule)
	_, err := c.Call(ctx, "org.freedesktop.DBus", "/org/freedesktop/DBus", "org.freedesktop.DBus", "RemoveMatch", sig, body, nil)
	return err
}

func (c *Conn) readLoop() {
	defer close(c.readerDone)
	for {
		msg, err := c.raw.Recv()
		if err != nil {
			c.shutdown(err)
			return
		}
		c.metrics.incMessagesReceived()

		switch msg.Type {
		case wire.MsgMethodReturn, wire.MsgError:
			if !msg.Fields.HasReply {
				c.log.WithField("conn", c.id).Warn("reply message missing ReplySerial field, dropping")
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.Fields.ReplySerial]
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
		case wire.MsgSignal:
			c.matches.dispatch(msg)
		case wire.MsgMethodCall:
			// This library is a client core (§1 scope): inbound method
			// calls addressed to us are outside what Conn itself handles.
			// A caller building an object server on top can drain them
			// via a dedicated Subscribe("type='method_call'") rule.
			c.matches.dispatch(msg)
		default:
			c.log.WithField("conn", c.id).WithField("type", msg.Type).Warn("unrecognized message type, dropping")
		}
	}
}

// shutdown fails every pending call and closes every stream once the raw
// connection reports a fatal error, so no caller blocks forever (§4.H
// disconnect propagation).
func (c *Conn) shutdown(err error) {
	c.closeMu.Lock()
	if c.closeErr == nil {
		c.closeErr = err
	}
	c.closeMu.Unlock()

	c.pendingMu.Lock()
	for serial, ch := range c.pending {
		close(ch)
		delete(c.pending, serial)
	}
	c.pendingMu.Unlock()

	c.matches.closeAll()
}

func (c *Conn) translateErr(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*Error); ok {
		return err
	}
	return wrapErr(KindDisconnected, err, "connection lost")
}

// Close shuts the connection down from the caller's side.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.raw.Close()
		<-c.readerDone
	})
	return err
}

// Err returns the error that ended the connection, if it has ended.
func (c *Conn) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}

// encodeSingleString hand-encodes a body of exactly one STRING argument,
// the shape AddMatch/RemoveMatch/RequestName/ReleaseName all share. This
// is the one place the core composes a body itself, rather than leaving
// encoding to a caller with a full zvariant codec; a single length-
// prefixed, NUL-terminated UTF-8 string needs no general type machinery.
func encodeSingleString(s string) (body []byte, signature string) {
	order, _ := wire.NativeEndianSig.Order()
	var lenBuf [4]byte
	order.PutUint32(lenBuf[:], uint32(len(s)))
	out := make([]byte, 0, 4+len(s)+1)
	out = append(out, lenBuf[:]...)
	out = append(out, s...)
	out = append(out, 0)
	return out, "s"
}
