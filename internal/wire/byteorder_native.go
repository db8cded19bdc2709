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

package wire

import "unsafe"

// nativeEndianSig detects host byte order the same way the runtime does:
// by inspecting the layout of a multi-byte value, rather than hard-coding
// per-GOARCH build tags.
func nativeEndianSig() EndianSig {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	if b[0] == 1 {
		return LittleEndianSig
	}
	return BigEndianSig
}
