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

// Package dbuscore is the transport-agnostic message engine underneath a
// D-Bus client: address parsing and transport binding, a framed
// connection with backpressure, message encoding/decoding, and a
// multiplexer that correlates replies and fans signals out to
// subscribers.
//
// The primary elements of interest are:
//
//  *  Dial, SessionBus and SystemBus, which resolve a bus address and
//     return a ready-to-use *Conn.
//
//  *  Conn, which exposes Call, CallNoReply, EmitSignal, Subscribe and
//     Close.
//
//  *  The blocking facade in blocking.go, for callers that want a
//     synchronous API without managing goroutines themselves.
//
// Encoding and decoding of argument values (the zvariant type system) is
// intentionally out of scope; callers supply pre-encoded bodies and a
// signature string, or use a higher-level package built atop this one.
package dbuscore
