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
	"time"

	"github.com/jacobsa/timeutil"
	"github.com/sirupsen/logrus"
)

// DefaultOutQueueLen is the out-queue depth used when Config.OutQueueLen is
// zero. Per spec this MUST NOT default to unbounded.
const DefaultOutQueueLen = 4

// DefaultStreamQueueLen is the default bound on a match-rule stream's
// signal queue.
const DefaultStreamQueueLen = 16

// Config carries tunables for a Conn. The zero value is valid; every field
// has a documented default applied by Dial.
type Config struct {
	// OutQueueLen bounds the raw connection's outbound queue depth (§5,
	// §9). Zero means DefaultOutQueueLen.
	OutQueueLen int

	// StreamQueueLen is a default bound for a match-rule stream's signal
	// queue. Zero means DefaultStreamQueueLen. Conn.Subscribe does not read
	// it: a stream's bound is Subscribe's queueLen argument, or
	// DefaultStreamQueueLen when that is zero or negative.
	StreamQueueLen int

	// DialTimeout bounds the tcp/nonce-tcp dial, including DNS resolution.
	// Zero means no timeout. Unix, vsock and launchd binding and the
	// authentication handshake are not bounded by it.
	DialTimeout time.Duration

	// Clock is stored on the Conn that Dial builds. Nil means
	// timeutil.RealClock(). No dial, polling or timeout path currently
	// reads time from it.
	Clock timeutil.Clock

	// Logger receives structured connection-lifecycle events. Nil means
	// a quiet, warn-level logrus.Logger.
	Logger *logrus.Logger

	// ExpectedGUID, if set, is passed to the handshake, which rejects a
	// server that reports a different GUID (a server that reports none is
	// accepted). Empty skips the check, which is the right choice for
	// first connections to an address whose GUID isn't yet known.
	ExpectedGUID string
}

func (c *Config) outQueueLen() int {
	if c.OutQueueLen > 0 {
		return c.OutQueueLen
	}
	return DefaultOutQueueLen
}

func (c *Config) streamQueueLen() int {
	if c.StreamQueueLen > 0 {
		return c.StreamQueueLen
	}
	return DefaultStreamQueueLen
}

func (c *Config) clock() timeutil.Clock {
	if c.Clock != nil {
		return c.Clock
	}
	return timeutil.RealClock()
}

func (c *Config) logger() *logrus.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultStructuredLogger()
}
