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
	"context"
	"fmt"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

const busName = "org.freedesktop.DBus"
const busPath = "/org/freedesktop/DBus"
const busIface = "org.freedesktop.DBus"

// RequestNameFlags mirrors org.freedesktop.DBus.RequestName's flag bits.
type RequestNameFlags uint32

const (
	NameFlagAllowReplacement RequestNameFlags = 1 << iota
	NameFlagReplaceExisting
	NameFlagDoNotQueue
)

// RequestNameResult mirrors RequestName's u32 reply codes.
type RequestNameResult uint32

const (
	NameReplyPrimaryOwner RequestNameResult = 1 + iota
	NameReplyInQueue
	NameReplyExists
	NameReplyAlreadyOwner
)

// hello issues the mandatory first call every client must make, learning
// its bus-assigned unique name (§6).
func hello(ctx context.Context, c *Conn) error {
	reply, err := c.Call(ctx, busName, busPath, busIface, "Hello", "", nil, nil)
	if err != nil {
		return err
	}
	name, err := decodeSingleString(reply.Body)
	if err != nil {
		return wrapErr(KindInvalidReply, err, "decoding Hello reply")
	}
	c.setUniqueName(name)
	return nil
}

// RequestName asks the bus to assign name to this connection.
func (c *Conn) RequestName(ctx context.Context, name string, flags RequestNameFlags) (RequestNameResult, error) {
	body, sig := encodeStringUint32(name, uint32(flags))
	reply, err := c.Call(ctx, busName, busPath, busIface, "RequestName", sig, body, nil)
	if err != nil {
		return 0, err
	}
	v, err := decodeUint32(reply.Body)
	if err != nil {
		return 0, wrapErr(KindInvalidReply, err, "decoding RequestName reply")
	}
	res := RequestNameResult(v)
	if res == NameReplyExists {
		return res, newErr(KindNameTaken, "name %q is already owned", name)
	}
	return res, nil
}

// ReleaseName asks the bus to relinquish a previously requested name.
func (c *Conn) ReleaseName(ctx context.Context, name string) error {
	body, sig := encodeSingleString(name)
	_, err := c.Call(ctx, busName, busPath, busIface, "ReleaseName", sig, body, nil)
	return err
}

// --- minimal body codecs -----------------------------------------------
//
// These cover only the fixed shapes the bus's own introspection-free
// methods use (a lone string, or a string followed by a uint32). A
// general zvariant codec is out of this library's scope; callers needing
// arbitrary argument types bring their own on top of Conn.Call.

func decodeSingleString(body []byte) (string, error) {
	if len(body) < 4 {
		return "", fmt.Errorf("body too short for a string")
	}
	order, _ := wire.NativeEndianSig.Order()
	n := order.Uint32(body[:4])
	if uint32(len(body)) < 4+n+1 {
		return "", fmt.Errorf("body too short for declared string length %d", n)
	}
	return string(body[4 : 4+n]), nil
}

func decodeUint32(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, fmt.Errorf("body too short for a uint32")
	}
	order, _ := wire.NativeEndianSig.Order()
	return order.Uint32(body[:4]), nil
}

func encodeStringUint32(s string, v uint32) (body []byte, signature string) {
	order, _ := wire.NativeEndianSig.Order()

	var lenBuf [4]byte
	order.PutUint32(lenBuf[:], uint32(len(s)))

	out := make([]byte, 0, 4+len(s)+1+4)
	out = append(out, lenBuf[:]...)
	out = append(out, s...)
	out = append(out, 0)
	pad := (4 - len(out)%4) % 4
	out = append(out, make([]byte, pad)...) // align to 4 for the uint32

	var vBuf [4]byte
	order.PutUint32(vBuf[:], v)
	out = append(out, vBuf[:]...)

	return out, "su"
}
