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

// Package auth defines the handshake collaborator interface the core
// invokes before any application message is exchanged (spec §6). The
// SASL line protocol and its mechanisms (EXTERNAL, ANONYMOUS,
// DBUS_COOKIE_SHA1) are deliberately out of this library's scope; this
// package provides only the interface and one minimal, always-available
// mechanism (EXTERNAL with a numeric-uid identity) so the core is usable
// without pulling in a full SASL stack.
package auth

import (
	"io"
)

// Credentials describes what the handshake learned about the peer, to the
// extent the transport can report it (e.g. SO_PEERCRED on Linux).
type Credentials struct {
	UID          int64
	PID          int64
	HasUID       bool
	HasPID       bool
}

// Result is what a successful Handshake hands back to the core.
type Result struct {
	// UniqueNameReady is true once BEGIN has been sent and the connection
	// may issue the bus Hello call to learn its unique name.
	UniqueNameReady bool
	Peer            Credentials
	// Leftover is any bytes the handshake over-read from ReadHalf that
	// belong to the first application message; the raw connection must
	// seed its inbound buffer with them.
	Leftover []byte
	// GUID is the server GUID returned during the handshake, if the
	// mechanism surfaces one (OK <guid> in the SASL exchange).
	GUID string
}

// ReadHalf and WriteHalf are the minimal byte-stream capabilities a
// handshake needs; they're satisfied by the core's own socket split (see
// the top-level socket.go) without creating an import cycle back to it.
type ReadHalf interface {
	io.Reader
}

type WriteHalf interface {
	io.Writer
}

// Handshake is the external collaborator interface named in spec §6. The
// core calls Authenticate once, immediately after obtaining a connected
// byte-stream and before any framed message is sent or received.
type Handshake interface {
	Authenticate(r ReadHalf, w WriteHalf, expectedGUID string) (Result, error)
}
