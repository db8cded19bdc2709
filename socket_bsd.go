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

//go:build darwin || freebsd || netbsd || openbsd
// +build darwin freebsd netbsd openbsd

package dbuscore

import (
	"net"

	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

// unixSocket on the BSDs: same framing as Linux, but peer credentials
// require the client to send a single zero byte carrying an SCM_CREDS
// ancillary message before the kernel will hand them back on a later
// recvmsg, rather than attaching them automatically (§4.F, §9).
type unixSocket struct {
	conn *net.UnixConn
	fd   int
}

func newUnixSocket(conn *net.UnixConn) *unixSocket {
	return &unixSocket{conn: conn, fd: netfd.GetFdFromConn(conn)}
}

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

func (s *unixSocket) Close() error         { return s.conn.Close() }
func (s *unixSocket) CanPassUnixFD() bool  { return true }

// SendZeroByte sends the single leading zero byte the SASL line protocol
// expects on these platforms. The BSD family's SCM_CREDS ancillary
// message format differs enough per-kernel (FreeBSD's struct cmsgcred vs.
// NetBSD/OpenBSD's sockcred) that this library does not attempt to attach
// one here; PeerCredentials below is correspondingly unsupported on this
// build.
func (s *unixSocket) SendZeroByte() error {
	_, err := s.conn.Write([]byte{0})
	return err
}

func (s *unixSocket) PeerCredentials() (Credentials, bool) {
	// LOCAL_PEERCRED / getpeereid differ enough across the BSDs that this
	// library does not chase them; SendZeroByte above still lets a future
	// mechanism (e.g. DBUS_COOKIE_SHA1) recover credentials its own way.
	return Credentials{}, false
}
