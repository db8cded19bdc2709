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
	"net"

	"github.com/go-dbuscore/dbuscore/internal/addr"
)

// bindUnix dials a Unix domain socket descriptor. Dir and TmpDir name a
// listening directory, not a single socket to connect to, so they're
// rejected here; a real client address never carries them.
func bindUnix(d addr.Descriptor) (Socket, error) {
	var name string
	switch d.UnixKind {
	case addr.UnixFile:
		name = d.UnixPath
	case addr.UnixAbstract:
		// Go represents the Linux abstract namespace with a leading '@' in
		// the address name; the actual socket name carries a leading NUL.
		name = "@" + string(d.Abstract)
	default:
		return nil, newErr(KindAddress, "unix address kind %v cannot be dialed, only listened on", d.UnixKind)
	}

	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: name, Net: "unix"})
	if err != nil {
		return nil, wrapErr(KindInputOutput, err, "dialing unix socket %q", name)
	}
	return newUnixSocket(conn), nil
}
