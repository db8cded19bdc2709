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

package auth

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// External is the SASL EXTERNAL mechanism, authenticating as the process's
// own uid. It is not a general SASL implementation — no DBUS_COOKIE_SHA1,
// no ANONYMOUS, no mechanism negotiation — just the one handshake every
// local Unix-socket bus connection needs.
type External struct {
	// UID overrides the identity sent to the server. Zero means "use the
	// real uid of this process", resolved lazily via getuid so tests can
	// substitute a fake without a build tag.
	UID    int
	Getuid func() int
}

func (e *External) uid() int {
	if e.Getuid != nil {
		return e.Getuid()
	}
	if e.UID != 0 {
		return e.UID
	}
	return osGetuid()
}

func (e *External) Authenticate(r ReadHalf, w WriteHalf, expectedGUID string) (Result, error) {
	if _, err := w.Write([]byte{0}); err != nil {
		return Result{}, fmt.Errorf("auth: writing initial NUL: %w", err)
	}

	ident := hex.EncodeToString([]byte(strconv.Itoa(e.uid())))
	if _, err := w.Write([]byte("AUTH EXTERNAL " + ident + "\r\n")); err != nil {
		return Result{}, fmt.Errorf("auth: writing AUTH EXTERNAL: %w", err)
	}

	line, err := readLine(r)
	if err != nil {
		return Result{}, fmt.Errorf("auth: reading server response: %w", err)
	}

	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "OK" {
		return Result{}, fmt.Errorf("auth: server rejected EXTERNAL auth: %q", line)
	}

	guid := ""
	if len(fields) > 1 {
		guid = fields[1]
	}
	if expectedGUID != "" && guid != "" && expectedGUID != guid {
		return Result{}, fmt.Errorf("auth: server GUID %q does not match expected %q", guid, expectedGUID)
	}

	if _, err := w.Write([]byte("BEGIN\r\n")); err != nil {
		return Result{}, fmt.Errorf("auth: writing BEGIN: %w", err)
	}

	return Result{UniqueNameReady: true, GUID: guid}, nil
}

// readLine reads one CRLF-terminated line a byte at a time so the
// handshake never over-reads bytes belonging to the first framed message
// (and therefore never needs to hand leftover bytes back to the core).
func readLine(r ReadHalf) (string, error) {
	var b []byte
	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			b = append(b, buf[0])
			if len(b) >= 2 && b[len(b)-2] == '\r' && b[len(b)-1] == '\n' {
				return string(b[:len(b)-2]), nil
			}
		}
		if err != nil {
			return "", err
		}
	}
}
