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

import "github.com/go-dbuscore/dbuscore/internal/addr"

// bindAutolaunch: the Windows autolaunch mechanism discovers a bus
// address through a named shared-memory segment maintained by
// dbus-daemon, with no published protocol and no equivalent anywhere in
// this library's dependency set. Callers on Windows are expected to
// resolve DBUS_SESSION_BUS_ADDRESS themselves (most installers set it);
// this transport exists so autolaunch: addresses parse without a crash,
// but binding one always fails.
func bindAutolaunch(d addr.Descriptor) (Socket, error) {
	return nil, newErr(KindAddress, "autolaunch transport is not supported; set DBUS_SESSION_BUS_ADDRESS explicitly")
}
