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

	"github.com/go-dbuscore/dbuscore/internal/addr"
	"golang.org/x/sys/unix"
)

// bindVsock dials an AF_VSOCK socket. The standard net package has no
// vsock support, so this goes straight to golang.org/x/sys/unix for the
// socket/connect pair and hands the resulting fd to net.FileConn to reuse
// the usual streamSocket framing above that.
func bindVsock(d addr.Descriptor) (Socket, error) {
	fd, err := unix.Socket(unix.AF_VSOCK, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, wrapErr(KindInputOutput, err, "creating vsock socket")
	}

	sa := &unix.SockaddrVM{CID: d.CID, Port: d.VsockPort}
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, wrapErr(KindInputOutput, err, "connecting vsock cid=%d port=%d", d.CID, d.VsockPort)
	}

	f := os.NewFile(uintptr(fd), "vsock")
	conn, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, wrapErr(KindInputOutput, err, "wrapping vsock fd")
	}
	return newStreamSocket(conn), nil
}
