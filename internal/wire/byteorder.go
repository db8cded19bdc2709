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

// Package wire implements the D-Bus wire format: byte-order/padding
// primitives, the 16-byte primary header preamble, and the full message
// codec. It knows nothing about sockets or connections.
package wire

import "encoding/binary"

// EndianSig is the one-byte endianness marker that opens every D-Bus
// message.
type EndianSig byte

const (
	LittleEndianSig EndianSig = 'l'
	BigEndianSig    EndianSig = 'B'
)

// Order returns the binary.ByteOrder matching the signature, or nil (and
// false) if the byte is neither 'l' nor 'B'.
func (s EndianSig) Order() (binary.ByteOrder, bool) {
	switch s {
	case LittleEndianSig:
		return binary.LittleEndian, true
	case BigEndianSig:
		return binary.BigEndian, true
	default:
		return nil, false
	}
}

// NativeEndianSig is the signature this process uses when it composes new
// messages. D-Bus permits writing in any declared order; we always write
// native to avoid a pointless byte swap on the hot path, matching the
// common practice of every D-Bus implementation surveyed for this
// library.
var NativeEndianSig = nativeEndianSig()

// Pad8 returns the number of zero bytes needed to round n up to the next
// multiple of 8.
func Pad8(n int) int {
	return (8 - n%8) % 8
}
