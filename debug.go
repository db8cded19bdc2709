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
	"flag"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var fEnableDebug = flag.Bool(
	"dbuscore.debug",
	false,
	"Write dbuscore wire-level debugging messages to stderr.")

var gWireLogger *logrus.Logger
var gWireLoggerOnce sync.Once

// initWireLogger builds the hot-path logger separately from
// defaultStructuredLogger (logging.go): that one carries per-connection
// events (connect, dropped inbound messages) at warn level by default,
// while this one is the byte-level send/receive trace that only a
// developer chasing a wire-protocol bug wants, gated behind its own flag
// rather than Config.Logger's level.
func initWireLogger() {
	out := io.Discard
	level := logrus.PanicLevel
	if flag.Parsed() && *fEnableDebug {
		out = os.Stderr
		level = logrus.DebugLevel
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	gWireLogger = l
}

// getLogger returns the wire-level debug logger used on the hot I/O path
// (raw connection send/receive). Absent -dbuscore.debug its level is set
// below Info, so the cost of a disabled call is a level check plus a
// discarded Entry, never a write.
func getLogger() *logrus.Entry {
	gWireLoggerOnce.Do(initWireLogger)
	return gWireLogger.WithField("component", "wire")
}
