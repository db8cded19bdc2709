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
	"os"
	"strconv"

	"github.com/go-dbuscore/dbuscore/internal/addr"
)

func tcpNetwork(f addr.Family) string {
	switch f {
	case addr.FamilyIPv4:
		return "tcp4"
	case addr.FamilyIPv6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// bindTCP dials a tcp: descriptor, honoring Config.DialTimeout.
func bindTCP(d addr.Descriptor, cfg *Config) (Socket, error) {
	if d.Host == "" || d.Port == 0 {
		return nil, newErr(KindAddress, "tcp address requires host and port")
	}
	addrStr := net.JoinHostPort(d.Host, strconv.Itoa(int(d.Port)))

	dialer := net.Dialer{Timeout: cfg.DialTimeout}
	conn, err := dialer.Dial(tcpNetwork(d.TCPFamily), addrStr)
	if err != nil {
		return nil, wrapErr(KindInputOutput, err, "dialing tcp %s", addrStr)
	}
	return newStreamSocket(conn), nil
}

// bindNonceTCP dials like bindTCP, then sends the shared-secret nonce
// read from NonceFile as the very first bytes on the wire, ahead of the
// usual leading zero byte and SASL exchange.
func bindNonceTCP(d addr.Descriptor, cfg *Config) (Socket, error) {
	sock, err := bindTCP(d, cfg)
	if err != nil {
		return nil, err
	}

	nonce, err := os.ReadFile(d.NonceFile)
	if err != nil {
		sock.Close()
		return nil, wrapErr(KindAddress, err, "reading noncefile %q", d.NonceFile)
	}
	if _, err := sock.SendMsg(nonce, nil); err != nil {
		sock.Close()
		return nil, wrapErr(KindInputOutput, err, "sending nonce")
	}
	return sock, nil
}
