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

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

// Next blocks for the next signal matched by this stream, or until ctx is
// done or the stream is closed (cancellation or disconnect). It is the
// synchronous counterpart to ranging over C() directly.
func (s *Stream) Next(ctx context.Context) (*wire.Message, error) {
	select {
	case msg, ok := <-s.ch:
		if !ok {
			return nil, Disconnected
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel releases this stream's reference to its match rule. If other
// Subscribe callers still hold the same rule, the bus subscription stays
// live for them; only the last Cancel issues RemoveMatch.
//
// Cancel always runs RemoveMatch to completion even if ctx is the
// caller's own short-lived request context: a caller tearing down a
// blocking call shouldn't leak a bus-side subscription because its
// context happened to expire first. ctx's values are kept, but its
// cancellation and deadline are not applied to the RemoveMatch call.
func (s *Stream) Cancel(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	return s.cancel(context.WithoutCancel(ctx))
}

// Drain reads and discards every signal currently queued, returning the
// count discarded. Used by callers that want to resynchronize a stream
// after falling behind, without tearing down and re-subscribing.
func (s *Stream) Drain() int {
	n := 0
	for {
		select {
		case _, ok := <-s.ch:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}
