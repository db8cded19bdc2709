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

// Package addr parses the D-Bus address grammar
// (transport:k=v,k=v;transport:k=v;...) into typed transport descriptors,
// independent of actually connecting anything.
package addr

import (
	"fmt"
	"strconv"
	"strings"
)

// Family restricts which IP family a tcp/nonce-tcp descriptor should
// resolve to.
type Family int

const (
	FamilyAny Family = iota
	FamilyIPv4
	FamilyIPv6
)

// Kind tags which transport variant a Descriptor holds.
type Kind int

const (
	KindUnix Kind = iota
	KindTCP
	KindNonceTCP
	KindVsock
	KindLaunchd
	KindAutolaunch
)

// UnixPathKind distinguishes the four mutually exclusive ways a Unix
// descriptor may name its socket.
type UnixPathKind int

const (
	UnixFile UnixPathKind = iota
	UnixAbstract
	UnixDir
	UnixTmpDir
)

// Descriptor is a parsed, single bus address. Exactly one of the *-Kind
// field groups below is populated, selected by Kind.
type Descriptor struct {
	Kind Kind

	// Unix
	UnixKind UnixPathKind
	UnixPath string // File(osstr) | Dir(osstr) | TmpDir(osstr)
	Abstract []byte // Abstract(bytes), Linux-only

	// Tcp / NonceTcp
	Host      string
	Bind      string
	Port      uint16
	TCPFamily Family
	NonceFile string // NonceTcp only

	// Vsock
	CID  uint32
	Port32Set bool
	VsockPort uint32

	// Launchd
	Env string

	// Autolaunch
	Scope string
}

// String renders d back into D-Bus address grammar. Parse(d.String())
// must produce an equal Descriptor (§8 round-trip invariant).
func (d Descriptor) String() string {
	kv := func(pairs ...[2]string) string {
		parts := make([]string, 0, len(pairs))
		for _, p := range pairs {
			if p[1] == "" {
				continue
			}
			parts = append(parts, p[0]+"="+percentEncode(p[1]))
		}
		return strings.Join(parts, ",")
	}

	switch d.Kind {
	case KindUnix:
		switch d.UnixKind {
		case UnixFile:
			return "unix:" + kv([2]string{"path", d.UnixPath})
		case UnixAbstract:
			return "unix:" + kv([2]string{"abstract", string(d.Abstract)})
		case UnixDir:
			return "unix:" + kv([2]string{"dir", d.UnixPath})
		case UnixTmpDir:
			return "unix:" + kv([2]string{"tmpdir", d.UnixPath})
		}
	case KindTCP:
		return "tcp:" + kv(
			[2]string{"host", d.Host},
			[2]string{"bind", d.Bind},
			[2]string{"port", strconv.Itoa(int(d.Port))},
			[2]string{"family", familyString(d.TCPFamily)},
		)
	case KindNonceTCP:
		return "nonce-tcp:" + kv(
			[2]string{"host", d.Host},
			[2]string{"bind", d.Bind},
			[2]string{"port", strconv.Itoa(int(d.Port))},
			[2]string{"family", familyString(d.TCPFamily)},
			[2]string{"noncefile", d.NonceFile},
		)
	case KindVsock:
		return "vsock:" + kv(
			[2]string{"cid", strconv.FormatUint(uint64(d.CID), 10)},
			[2]string{"port", strconv.FormatUint(uint64(d.VsockPort), 10)},
		)
	case KindLaunchd:
		return "launchd:" + kv([2]string{"env", d.Env})
	case KindAutolaunch:
		return "autolaunch:" + kv([2]string{"scope", d.Scope})
	}
	return ""
}

func familyString(f Family) string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	default:
		return ""
	}
}

// Parse parses a full D-Bus address string (possibly several addresses
// separated by ';') into an ordered list of descriptors.
func Parse(s string) ([]Descriptor, error) {
	var out []Descriptor
	for _, part := range splitTop(s, ';') {
		if part == "" {
			continue
		}
		d, err := parseOne(part)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, &Error{Msg: "empty address string"}
	}
	return out, nil
}

// Error reports a malformed or unsupported address (Kind Address in the
// top-level error taxonomy).
type Error struct{ Msg string }

func (e *Error) Error() string { return "addr: " + e.Msg }

func splitTop(s string, sep byte) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

func parseOne(s string) (Descriptor, error) {
	colon := strings.IndexByte(s, ':')
	if colon < 0 {
		return Descriptor{}, &Error{Msg: fmt.Sprintf("missing ':' in address %q", s)}
	}
	transport := s[:colon]
	rest := s[colon+1:]

	kv, err := parseKV(rest)
	if err != nil {
		return Descriptor{}, err
	}

	switch transport {
	case "unix":
		return parseUnix(kv)
	case "tcp":
		return parseTCP(kv, KindTCP)
	case "nonce-tcp":
		return parseTCP(kv, KindNonceTCP)
	case "vsock":
		return parseVsock(kv)
	case "launchd":
		return parseLaunchd(kv)
	case "autolaunch":
		return parseAutolaunch(kv)
	default:
		return Descriptor{}, &Error{Msg: fmt.Sprintf("unknown transport %q", transport)}
	}
}

func parseKV(s string) (map[string]string, error) {
	out := map[string]string{}
	if s == "" {
		return out, nil
	}
	for _, pair := range splitTop(s, ',') {
		eq := strings.IndexByte(pair, '=')
		if eq < 0 {
			return nil, &Error{Msg: fmt.Sprintf("malformed key=value pair %q", pair)}
		}
		k := pair[:eq]
		v, err := percentDecode(pair[eq+1:])
		if err != nil {
			return nil, err
		}
		if _, dup := out[k]; dup {
			return nil, &Error{Msg: fmt.Sprintf("duplicate key %q", k)}
		}
		out[k] = v
	}
	return out, nil
}

func parseUnix(kv map[string]string) (Descriptor, error) {
	path, hasPath := kv["path"]
	abstract, hasAbstract := kv["abstract"]
	dir, hasDir := kv["dir"]
	tmpdir, hasTmpDir := kv["tmpdir"]

	count := 0
	for _, b := range []bool{hasPath, hasAbstract, hasDir, hasTmpDir} {
		if b {
			count++
		}
	}
	if count == 0 {
		return Descriptor{}, &Error{Msg: "unix address needs one of path, abstract, dir, tmpdir"}
	}
	if count > 1 {
		return Descriptor{}, &Error{Msg: "unix address has conflicting keys (only one of path/abstract/dir/tmpdir allowed)"}
	}

	d := Descriptor{Kind: KindUnix}
	switch {
	case hasPath:
		d.UnixKind = UnixFile
		d.UnixPath = path
	case hasAbstract:
		d.UnixKind = UnixAbstract
		d.Abstract = []byte(abstract)
	case hasDir:
		d.UnixKind = UnixDir
		d.UnixPath = dir
	case hasTmpDir:
		d.UnixKind = UnixTmpDir
		d.UnixPath = tmpdir
	}
	return d, nil
}

func parseTCP(kv map[string]string, kind Kind) (Descriptor, error) {
	d := Descriptor{Kind: kind}
	d.Host = kv["host"]
	d.Bind = kv["bind"]

	if p, ok := kv["port"]; ok {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Descriptor{}, &Error{Msg: fmt.Sprintf("invalid port %q", p)}
		}
		d.Port = uint16(n)
	}

	switch kv["family"] {
	case "", "any":
		d.TCPFamily = FamilyAny
	case "ipv4":
		d.TCPFamily = FamilyIPv4
	case "ipv6":
		d.TCPFamily = FamilyIPv6
	default:
		return Descriptor{}, &Error{Msg: fmt.Sprintf("invalid family %q", kv["family"])}
	}

	if kind == KindNonceTCP {
		nf, ok := kv["noncefile"]
		if !ok {
			return Descriptor{}, &Error{Msg: "nonce-tcp address missing required key noncefile"}
		}
		d.NonceFile = nf
	}

	return d, nil
}

func parseVsock(kv map[string]string) (Descriptor, error) {
	cidStr, ok := kv["cid"]
	if !ok {
		return Descriptor{}, &Error{Msg: "vsock address missing required key cid"}
	}
	portStr, ok := kv["port"]
	if !ok {
		return Descriptor{}, &Error{Msg: "vsock address missing required key port"}
	}
	cid, err := strconv.ParseUint(cidStr, 10, 32)
	if err != nil {
		return Descriptor{}, &Error{Msg: fmt.Sprintf("invalid cid %q", cidStr)}
	}
	port, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return Descriptor{}, &Error{Msg: fmt.Sprintf("invalid port %q", portStr)}
	}
	return Descriptor{Kind: KindVsock, CID: uint32(cid), VsockPort: uint32(port), Port32Set: true}, nil
}

func parseLaunchd(kv map[string]string) (Descriptor, error) {
	env, ok := kv["env"]
	if !ok {
		return Descriptor{}, &Error{Msg: "launchd address missing required key env"}
	}
	return Descriptor{Kind: KindLaunchd, Env: env}, nil
}

func parseAutolaunch(kv map[string]string) (Descriptor, error) {
	return Descriptor{Kind: KindAutolaunch, Scope: kv["scope"]}, nil
}

// percentDecode decodes %HH escapes. It does not otherwise validate the
// result (no UTF-8 check) and never errors on non-percent bytes; only a
// malformed %-escape is an error.
func percentDecode(s string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", &Error{Msg: fmt.Sprintf("invalid percent-escape in %q", s)}
		}
		hi, ok1 := hexVal(s[i+1])
		lo, ok2 := hexVal(s[i+2])
		if !ok1 || !ok2 {
			return "", &Error{Msg: fmt.Sprintf("invalid percent-escape in %q", s)}
		}
		b.WriteByte(byte(hi<<4 | lo))
		i += 2
	}
	return b.String(), nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// percentEncode is the bijective inverse of percentDecode over the byte
// domain: every byte outside the unreserved set is escaped, so
// percentDecode(percentEncode(b)) == b for all b (§8).
func percentEncode(s string) string {
	const unreserved = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-/.\\"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// Format renders a full list of descriptors as a ';'-joined address
// string, the grammar-level inverse of Parse.
func Format(ds []Descriptor) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.String()
	}
	return strings.Join(parts, ";")
}
