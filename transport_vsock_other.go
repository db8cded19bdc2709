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

//go:build !linux
// +build !linux

package dbuscore

import "github.com/go-dbuscore/dbuscore/internal/addr"

// bindVsock: AF_VSOCK is a Linux-specific address family with no portable
// equivalent, so vsock: addresses simply fail to bind on other platforms.
func bindVsock(d addr.Descriptor) (Socket, error) {
	return nil, newErr(KindAddress, "vsock transport is not supported on this platform")
}
