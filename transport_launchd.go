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
	"bytes"
	"os/exec"
	"strings"

	"github.com/go-dbuscore/dbuscore/internal/addr"
	"github.com/go-dbuscore/dbuscore/internal/auth"
)

// bindLaunchd resolves a launchd: descriptor by shelling out to
// `launchctl getenv <env>`, which macOS's launchd uses to publish the
// session bus socket path, then dials the resulting path as a Unix
// descriptor and runs the handshake itself.
func bindLaunchd(d addr.Descriptor, cfg *Config, hs auth.Handshake) (*bindResult, error) {
	out, err := exec.Command("launchctl", "getenv", d.Env).CombinedOutput()
	if err != nil {
		return nil, wrapErr(KindAddress, err, "launchctl getenv %s: %s", d.Env, bytes.TrimSpace(out))
	}

	path := strings.TrimRight(string(out), "\r\n")
	if path == "" {
		return nil, newErr(KindAddress, "launchctl getenv %s returned an empty path", d.Env)
	}

	unixDesc := addr.Descriptor{Kind: addr.KindUnix, UnixKind: addr.UnixFile, UnixPath: path}
	return bindOne(unixDesc, cfg, hs)
}
