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

import "strconv"

// GUID is the 32 hex-digit identifier a bus server reports during the
// SASL handshake. Two successful connections to the same bus socket
// should see the same GUID; Config.ExpectedGUID lets a caller that
// already knows it detect a reconnection to a different server (e.g. a
// restarted daemon) instead of silently talking to it.
type GUID string

// Valid reports whether g looks like a well-formed GUID: exactly 32
// lowercase hex digits, per the D-Bus specification's server-guid grammar.
func (g GUID) Valid() bool {
	if len(g) != 32 {
		return false
	}
	for i := 0; i < len(g); i++ {
		if g[i] >= 'A' && g[i] <= 'F' {
			return false
		}
		if _, err := strconv.ParseUint(string(g[i]), 16, 8); err != nil {
			return false
		}
	}
	return true
}
