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

import "os"

// RecvHalf is the capability set a raw connection needs from the read
// side of a split socket (§4.F, §9 "Polymorphism"): byte reads plus
// ancillary fd reception, modeled as composition rather than a deep
// interface hierarchy.
type RecvHalf interface {
	// RecvMsg reads into buf, returning the number of bytes read and any
	// file descriptors that arrived as ancillary data alongside them.
	RecvMsg(buf []byte) (n int, fds []int, err error)

	// PeerCredentials returns the credentials obtained at connect time
	// (e.g. SO_PEERCRED), if the transport supports it.
	PeerCredentials() (Credentials, bool)

	CanPassUnixFD() bool
}

// SendHalf is the capability set needed from the write side.
type SendHalf interface {
	// SendMsg writes buf, attaching fds as ancillary data. Callers (the
	// raw connection) must pass fds only on the first write of a message
	// and an empty slice on partial-write continuations (§4.G).
	SendMsg(buf []byte, fds []int) (n int, err error)

	// SendZeroByte sends the single leading NUL byte some BSD variants
	// require before the SASL line protocol. No implementation attaches an
	// SCM_CREDS message to it. A no-op on platforms that don't need it.
	SendZeroByte() error

	Close() error

	CanPassUnixFD() bool
}

// Credentials mirrors internal/auth.Credentials at the top-level API
// boundary so callers don't need to import an internal package.
type Credentials struct {
	UID    int64
	PID    int64
	HasUID bool
	HasPID bool
}

// Socket bundles both halves plus whole-connection close, matching how
// the transport binder hands a connected byte-stream to the handshake and
// then to the raw connection.
type Socket interface {
	RecvHalf
	SendHalf
}

// Pollable is implemented by sockets that can expose their underlying
// file descriptor for readiness polling. RawConn uses it, when present,
// to bound how long a read blocks without committing every platform to
// supporting the same mechanism.
//
// The returned *os.File is a dup of the socket's descriptor, independent
// of the socket's own lifetime; the caller owns it and must Close it.
type Pollable interface {
	PollFile() (*os.File, error)
}
