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

//go:build linux
// +build linux

package dbuscore

import (
	"net"
	"os"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// unixSocket wraps a *net.UnixConn, exposing the split RecvHalf/SendHalf
// capability sets used by the raw connection. The two sides share the
// underlying conn but are independently usable from separate goroutines:
// net.UnixConn's ReadMsgUnix/WriteMsgUnix are safe for concurrent use from
// one reader and one writer, matching the hard split invariant in §5.
type unixSocket struct {
	conn *net.UnixConn
	fd   int
}

func newUnixSocket(conn *net.UnixConn) *unixSocket {
	return &unixSocket{conn: conn, fd: netfd.GetFdFromConn(conn)}
}

// oobBufSize is generous enough for the handful of fds a single D-Bus
// message realistically carries.
const oobBufSize = 4096

func (s *unixSocket) RecvMsg(buf []byte) (int, []int, error) {
	oob := make([]byte, oobBufSize)
	n, oobn, flags, _, err := s.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return n, nil, err
	}
	if flags&unix.MSG_CTRUNC != 0 {
		return n, nil, newErr(KindInputOutput, "control data truncated: too many fds received in one recvmsg")
	}

	var fds []int
	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return n, nil, wrapErr(KindInputOutput, err, "parsing socket control message")
		}
		for _, scm := range scms {
			rights, err := unix.ParseUnixRights(&scm)
			if err != nil {
				continue
			}
			fds = append(fds, rights...)
		}
	}

	return n, fds, nil
}

func (s *unixSocket) SendMsg(buf []byte, fds []int) (int, error) {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	n, _, err := s.conn.WriteMsgUnix(buf, oob, nil)
	return n, err
}

func (s *unixSocket) Close() error {
	return s.conn.Close()
}

func (s *unixSocket) CanPassUnixFD() bool { return true }

// SendZeroByte is a no-op on Linux: the kernel delivers SO_PEERCRED
// without any cooperation from the client, unlike the BSDs.
func (s *unixSocket) SendZeroByte() error { return nil }

func (s *unixSocket) PeerCredentials() (Credentials, bool) {
	ucred, err := unix.GetsockoptUcred(s.fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return Credentials{}, false
	}
	return Credentials{
		UID: int64(ucred.Uid), HasUID: true,
		PID: int64(ucred.Pid), HasPID: true,
	}, true
}

// PollFile implements Pollable. It hands back a dup of the connection's
// fd rather than the fd itself: os.File runs a finalizer that closes its
// fd when garbage collected, so wrapping the live fd directly would risk
// the socket being closed out from under RawConn at an arbitrary time.
func (s *unixSocket) PollFile() (*os.File, error) {
	dup, err := unix.Dup(s.fd)
	if err != nil {
		return nil, err
	}
	return os.NewFile(uintptr(dup), "dbuscore-unix-poll"), nil
}
