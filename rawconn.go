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
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/daedaluz/fdev/poll"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

// broadcaster is a repeatedly-fireable notification point: callers get a
// channel from wait() that closes the next time fire() runs, then must
// call wait() again for the next occurrence. It backs both the raw
// connection's activity and out-queue-ready events (§4.G, §9), which have
// no natural Go channel-of-values shape since there's no payload, only an
// edge.
type broadcaster struct {
	mu sync.Mutex
	ch chan struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{ch: make(chan struct{})}
}

func (b *broadcaster) wait() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ch
}

func (b *broadcaster) fire() {
	b.mu.Lock()
	close(b.ch)
	b.ch = make(chan struct{})
	b.mu.Unlock()
}

// leftoverRecv serves bytes the handshake over-read before falling through
// to the real socket, so a Handshake implementation is free to buffer
// ahead without the raw connection losing those bytes (§6).
type leftoverRecv struct {
	RecvHalf
	buf []byte
}

func (l *leftoverRecv) RecvMsg(p []byte) (int, []int, error) {
	if len(l.buf) > 0 {
		n := copy(p, l.buf)
		l.buf = l.buf[n:]
		return n, nil, nil
	}
	return l.RecvHalf.RecvMsg(p)
}

// outItem is one queued outbound message. fds rides along only on the
// first underlying write of buf; RawConn.writeAll enforces that.
type outItem struct {
	buf []byte
	fds []int
	// done receives the write's result (nil or the error) once the write
	// completes, which is what Enqueue waits on after queuing the item.
	done chan error
}

// RawConn is a framed, bidirectional D-Bus byte stream: it knows how to
// read and write whole messages and enforce backpressure, but nothing
// about serials, pending calls, or signal routing. That's the
// multiplexer's job, layered on top (§4.G).
type RawConn struct {
	send SendHalf
	recv RecvHalf

	outCh     chan outItem
	outReady  *broadcaster
	activity  *broadcaster
	recvSeq   uint64
	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
	closeMu   sync.Mutex
	writerWG  sync.WaitGroup
}

// NewRawConn wraps an already-authenticated Socket (split as send/recv
// halves so the halves can be driven from independent goroutines) into a
// RawConn with the given outbound queue depth. leftover is any bytes the
// handshake already read off the wire that belong to the first message.
func NewRawConn(send SendHalf, recv RecvHalf, leftover []byte, outQueueLen int) *RawConn {
	if outQueueLen <= 0 {
		outQueueLen = DefaultOutQueueLen
	}
	c := &RawConn{
		send:     send,
		recv:     &leftoverRecv{RecvHalf: recv, buf: leftover},
		outCh:    make(chan outItem, outQueueLen),
		outReady: newBroadcaster(),
		activity: newBroadcaster(),
		closed:   make(chan struct{}),
	}
	c.writerWG.Add(1)
	go c.writeLoop()
	return c
}

// Enqueue hands a fully encoded, serial-patched message to the writer
// goroutine, blocking while the out-queue is full (the backpressure
// mechanism named in §5, §9) until ctx is done or the connection closes.
func (c *RawConn) Enqueue(ctx context.Context, buf []byte, fds []int) error {
	item := outItem{buf: buf, fds: fds, done: make(chan error, 1)}
	select {
	case c.outCh <- item:
	case <-c.closed:
		return Disconnected
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-item.done:
		return err
	case <-c.closed:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OutQueueReady returns a channel that closes the next time a slot frees
// up in the out-queue, for callers that want to avoid blocking in Enqueue.
func (c *RawConn) OutQueueReady() <-chan struct{} { return c.outReady.wait() }

// Activity returns a channel that closes the next time a whole message is
// successfully sent or received, useful for idle/keepalive timers layered
// above this type.
func (c *RawConn) Activity() <-chan struct{} { return c.activity.wait() }

func (c *RawConn) writeLoop() {
	defer c.writerWG.Done()
	for {
		select {
		case item := <-c.outCh:
			err := c.writeAll(item.buf, item.fds)
			if err != nil {
				getLogger().Printf("write of %d bytes (%d fds) failed: %v", len(item.buf), len(item.fds), err)
			} else {
				getLogger().Printf("wrote %d bytes (%d fds)", len(item.buf), len(item.fds))
			}
			item.done <- err
			c.outReady.fire()
			if err != nil {
				c.fail(err)
				return
			}
			c.activity.fire()
		case <-c.closed:
			return
		}
	}
}

// writeAll loops SendMsg until buf is fully written, attaching fds only
// to the first underlying write (§4.G fd-on-first-write discipline: a
// partial write must never be followed by re-sending the same fds).
func (c *RawConn) writeAll(buf []byte, fds []int) error {
	off := 0
	for off < len(buf) {
		n, err := c.send.SendMsg(buf[off:], fds)
		fds = nil
		if n > 0 {
			off += n
		}
		if err != nil {
			return wrapErr(KindInputOutput, err, "writing message")
		}
		if n == 0 {
			return wrapErr(KindInputOutput, io.ErrShortWrite, "writing message")
		}
	}
	return nil
}

// RecvTimeout behaves like Recv but returns (nil, nil) instead of
// blocking past timeout if no message has started arriving yet. It only
// bounds the wait for the first byte of the next message; once header
// bytes start arriving, RecvTimeout reads the rest of that message to
// completion like Recv does. Only sockets implementing Pollable (the
// Linux unix-socket transport, currently) support this; on any other
// socket it falls back to an ordinary blocking Recv.
func (c *RawConn) RecvTimeout(timeout time.Duration) (*wire.Message, error) {
	pollable, ok := c.recv.(Pollable)
	if !ok {
		if lo, ok := c.recv.(*leftoverRecv); ok {
			pollable, ok = lo.RecvHalf.(Pollable)
			if !ok {
				return c.Recv()
			}
		} else {
			return c.Recv()
		}
	}

	f, err := pollable.PollFile()
	if err != nil {
		return c.Recv()
	}
	defer f.Close()

	if err := poll.WaitInput(f, timeout); err != nil {
		return nil, nil
	}
	return c.Recv()
}

// Recv reads exactly one complete message, including any file
// descriptors that arrived alongside it, and assigns it the next
// monotonically increasing receive sequence number (§3 invariant).
func (c *RawConn) Recv() (*wire.Message, error) {
	hdrBuf := make([]byte, 16)
	fds, err := c.readExact(hdrBuf)
	if err != nil {
		return nil, c.translateIOErr(err)
	}

	hdr, fieldsLen, err := wire.ReadPrimaryHeader(hdrBuf)
	if err != nil {
		return nil, c.translateWireErr(err)
	}

	total := 16 + int(fieldsLen) + wire.Pad8(16+int(fieldsLen)) + int(hdr.BodyLen)
	if total > wire.MaxMessageSize {
		return nil, newErr(KindExcessData, "message length %d exceeds the %d byte cap", total, wire.MaxMessageSize)
	}

	rest := make([]byte, total-16)
	restFds, err := c.readExact(rest)
	fds = append(fds, restFds...)
	if err != nil {
		return nil, c.translateIOErr(err)
	}

	full := make([]byte, 0, total)
	full = append(full, hdrBuf...)
	full = append(full, rest...)

	msg, err := wire.Decode(full, fds)
	if err != nil {
		return nil, c.translateWireErr(err)
	}

	msg.RecvSeq = atomic.AddUint64(&c.recvSeq, 1)
	c.activity.fire()
	getLogger().Printf("received message type=%v serial=%d recvSeq=%d (%d bytes, %d fds)", msg.Type, msg.Serial, msg.RecvSeq, len(full), len(fds))
	return msg, nil
}

func (c *RawConn) readExact(buf []byte) ([]int, error) {
	var fds []int
	off := 0
	for off < len(buf) {
		n, gotFds, err := c.recv.RecvMsg(buf[off:])
		if len(gotFds) > 0 {
			fds = append(fds, gotFds...)
		}
		if n > 0 {
			off += n
		}
		if err != nil {
			return fds, err
		}
		if n == 0 {
			return fds, io.ErrUnexpectedEOF
		}
	}
	return fds, nil
}

func (c *RawConn) translateIOErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		c.fail(Disconnected)
		return Disconnected
	}
	c.fail(err)
	return wrapErr(KindInputOutput, err, "reading message")
}

func (c *RawConn) translateWireErr(err error) error {
	we, ok := err.(*wire.WireError)
	if !ok {
		return wrapErr(KindInputOutput, err, "decoding message")
	}
	switch we.Kind {
	case "IncorrectEndian":
		return newErr(KindIncorrectEndian, we.Msg)
	case "UnknownProtocol":
		return newErr(KindUnknownProtocol, we.Msg)
	case "ExcessData":
		return newErr(KindExcessData, we.Msg)
	case "MissingField":
		return newErr(KindMissingField, we.Msg)
	case "InvalidField":
		return newErr(KindInvalidField, we.Msg)
	default:
		return wrapErr(KindInputOutput, err, "decoding message")
	}
}

// fail records the first fatal error the connection hit and unblocks
// every goroutine waiting in Enqueue. Safe to call more than once; only
// the first error sticks.
func (c *RawConn) fail(err error) {
	c.closeMu.Lock()
	first := c.closeErr == nil
	if first {
		c.closeErr = err
	}
	c.closeMu.Unlock()
	if first {
		c.closeOnce.Do(func() { close(c.closed) })
	}
}

// Close tears down the underlying socket and unblocks any goroutine
// waiting in Enqueue or Recv.
func (c *RawConn) Close() error {
	c.fail(Disconnected)
	// Close the socket before waiting for the writer goroutine: if it's
	// blocked inside a SendMsg syscall, closing is what unblocks it.
	err := c.send.Close()
	c.writerWG.Wait()
	return err
}

// Err returns the error that caused the connection to stop, if any.
func (c *RawConn) Err() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	return c.closeErr
}
