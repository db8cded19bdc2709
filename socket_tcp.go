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

import "net"

// streamSocket adapts any net.Conn (tcp, nonce-tcp, and vsock on Linux
// builds) to the Socket interface. None of these carry fd-passing
// ancillary data, so CanPassUnixFD is always false and SendMsg rejects
// fds outright rather than silently dropping them.
type streamSocket struct {
	conn net.Conn
}

func newStreamSocket(conn net.Conn) *streamSocket {
	return &streamSocket{conn: conn}
}

func (s *streamSocket) RecvMsg(buf []byte) (int, []int, error) {
	n, err := s.conn.Read(buf)
	return n, nil, err
}

func (s *streamSocket) SendMsg(buf []byte, fds []int) (int, error) {
	if len(fds) > 0 {
		return 0, newErr(KindInputOutput, "fd passing is not supported on this transport")
	}
	return s.conn.Write(buf)
}

func (s *streamSocket) Close() error        { return s.conn.Close() }
func (s *streamSocket) CanPassUnixFD() bool { return false }
func (s *streamSocket) SendZeroByte() error { return nil }

func (s *streamSocket) PeerCredentials() (Credentials, bool) {
	return Credentials{}, false
}
