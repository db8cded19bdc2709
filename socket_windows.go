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

//go:build windows
// +build windows

package dbuscore

import "net"

// unixSocket on Windows carries no fd-passing or credential support; the
// normal path there is autolaunch, not a Unix-domain socket.
type unixSocket struct {
	conn *net.UnixConn
}

func newUnixSocket(conn *net.UnixConn) *unixSocket {
	return &unixSocket{conn: conn}
}

func (s *unixSocket) RecvMsg(buf []byte) (int, []int, error) {
	n, err := s.conn.Read(buf)
	return n, nil, err
}

func (s *unixSocket) SendMsg(buf []byte, fds []int) (int, error) {
	if len(fds) > 0 {
		return 0, newErr(KindInputOutput, "fd passing is not supported on windows")
	}
	return s.conn.Write(buf)
}

func (s *unixSocket) Close() error               { return s.conn.Close() }
func (s *unixSocket) CanPassUnixFD() bool        { return false }
func (s *unixSocket) SendZeroByte() error        { return nil }
func (s *unixSocket) PeerCredentials() (Credentials, bool) { return Credentials{}, false }
