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
	"os"

	"github.com/go-dbuscore/dbuscore/internal/addr"
	"github.com/go-dbuscore/dbuscore/internal/auth"
)

// bindResult is what the transport binder hands back to Dial: a connected
// socket, the handshake's verdict, and any bytes the handshake over-read
// that belong to the first application message.
type bindResult struct {
	socket  Socket
	auth    auth.Result
	descStr string
}

// bindOne resolves a single address descriptor to a connected,
// authenticated socket. Listen-side-only descriptors (Unix Dir/TmpDir)
// are a usage error here, per §4.E.
func bindOne(d addr.Descriptor, cfg *Config, hs auth.Handshake) (*bindResult, error) {
	// launchd resolves to a Unix descriptor and recurses through bindOne,
	// so its handshake (if any) already ran by the time it returns here.
	if d.Kind == addr.KindLaunchd {
		return bindLaunchd(d, cfg, hs)
	}

	var (
		sock Socket
		err  error
	)

	switch d.Kind {
	case addr.KindUnix:
		sock, err = bindUnix(d)
	case addr.KindTCP:
		sock, err = bindTCP(d, cfg)
	case addr.KindNonceTCP:
		sock, err = bindNonceTCP(d, cfg)
	case addr.KindVsock:
		sock, err = bindVsock(d)
	case addr.KindAutolaunch:
		sock, err = bindAutolaunch(d)
	default:
		return nil, newErr(KindAddress, "unsupported transport kind")
	}

	if err != nil {
		return nil, err
	}

	res, err := runHandshake(sock, hs, cfg.ExpectedGUID)
	if err != nil {
		sock.Close()
		return nil, err
	}

	return &bindResult{socket: sock, auth: res, descStr: d.String()}, nil
}

// bindAddresses tries each descriptor in order until one connects,
// matching the D-Bus client convention that an address list is a
// fallback chain, not a fan-out.
func bindAddresses(descs []addr.Descriptor, cfg *Config, hs auth.Handshake) (*bindResult, error) {
	var lastErr error
	for _, d := range descs {
		res, err := bindOne(d, cfg, hs)
		if err == nil {
			return res, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = newErr(KindAddress, "no addresses to try")
	}
	getLogger().Printf("exhausted address list %q: %v", addr.Format(descs), lastErr)
	return nil, lastErr
}

func runHandshake(sock Socket, hs auth.Handshake, expectedGUID string) (auth.Result, error) {
	if err := sock.SendZeroByte(); err != nil {
		return auth.Result{}, wrapErr(KindHandshake, err, "sending leading credentials byte")
	}
	res, err := hs.Authenticate(recvHalfAdapter{sock}, sendHalfAdapter{sock}, expectedGUID)
	if err != nil {
		return auth.Result{}, wrapErr(KindHandshake, err, "authentication failed")
	}
	if res.GUID != "" && !GUID(res.GUID).Valid() {
		return auth.Result{}, newErr(KindHandshake, "server reported malformed GUID %q", res.GUID)
	}
	return res, nil
}

// recvHalfAdapter/sendHalfAdapter satisfy the auth package's narrower
// io.Reader/io.Writer handshake interfaces over our RecvMsg/SendMsg
// capability set, without handing the handshake fd-passing powers it has
// no business using.
type recvHalfAdapter struct{ s Socket }

func (a recvHalfAdapter) Read(p []byte) (int, error) {
	n, _, err := a.s.RecvMsg(p)
	return n, err
}

type sendHalfAdapter struct{ s Socket }

func (a sendHalfAdapter) Write(p []byte) (int, error) {
	return a.s.SendMsg(p, nil)
}

// defaultAuth is the handshake used when a caller doesn't supply one:
// SASL EXTERNAL against the process's own uid, the mechanism every local
// Unix-socket bus deployment accepts.
func defaultAuth() auth.Handshake {
	return &auth.External{}
}

// sessionBusAddress resolves the session bus per §6's environment
// variable precedence.
func sessionBusAddress() (string, error) {
	if a := os.Getenv("DBUS_SESSION_BUS_ADDRESS"); a != "" {
		return a, nil
	}
	return "", newErr(KindAddress, "DBUS_SESSION_BUS_ADDRESS is not set")
}

// systemBusAddress resolves the system bus per §6, falling back to the
// well-known default socket path.
func systemBusAddress() string {
	if a := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS"); a != "" {
		return a
	}
	return "unix:path=/var/run/dbus/system_bus_socket"
}

// starterBusAddress resolves an activated service's bus per §6.
func starterBusAddress() (string, error) {
	if a := os.Getenv("DBUS_STARTER_ADDRESS"); a != "" {
		return a, nil
	}
	return "", newErr(KindAddress, "DBUS_STARTER_ADDRESS is not set")
}
