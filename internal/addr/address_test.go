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

package addr

import (
	"reflect"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"unix:path=/run/dbus/system_bus_socket",
		"unix:abstract=/tmp/dbus-xyz",
		"unix:dir=/tmp/dbus-dirs",
		"unix:tmpdir=/tmp",
		"tcp:host=localhost,port=1234",
		"tcp:host=localhost,port=1234,family=ipv4",
		"nonce-tcp:host=127.0.0.1,port=4,noncefile=/tmp/nonce",
		"vsock:cid=3,port=7",
		"launchd:env=DBUS_LAUNCHD_SESSION_BUS_SOCKET",
		"autolaunch:",
	}

	for _, s := range cases {
		t.Run(s, func(t *testing.T) {
			ds, err := Parse(s)
			if err != nil {
				t.Fatalf("Parse(%q): %v", s, err)
			}
			if len(ds) != 1 {
				t.Fatalf("Parse(%q) produced %d descriptors, want 1", s, len(ds))
			}

			again, err := Parse(ds[0].String())
			if err != nil {
				t.Fatalf("re-parsing %q (rendered from %q): %v", ds[0].String(), s, err)
			}
			if len(again) != 1 || !reflect.DeepEqual(again[0], ds[0]) {
				t.Errorf("round trip mismatch: %+v -> %q -> %+v", ds[0], ds[0].String(), again)
			}
		})
	}
}

func TestParseMultipleAddresses(t *testing.T) {
	ds, err := Parse("unix:path=/a;tcp:host=h,port=1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(ds) != 2 {
		t.Fatalf("got %d descriptors, want 2", len(ds))
	}
	if ds[0].Kind != KindUnix || ds[1].Kind != KindTCP {
		t.Errorf("got kinds %v, %v", ds[0].Kind, ds[1].Kind)
	}
}

func TestPercentEncodingBijective(t *testing.T) {
	raw := "weird value: ,;=%/\\ end"
	enc := percentEncode(raw)
	dec, err := percentDecode(enc)
	if err != nil {
		t.Fatalf("percentDecode: %v", err)
	}
	if dec != raw {
		t.Errorf("round trip mismatch: %q -> %q -> %q", raw, enc, dec)
	}
}

func TestParseUnixConflictingKeys(t *testing.T) {
	_, err := Parse("unix:path=/a,abstract=b")
	if err == nil {
		t.Fatal("expected an error for conflicting unix address keys")
	}
}

func TestParseUnixMissingKeys(t *testing.T) {
	_, err := Parse("unix:")
	if err == nil {
		t.Fatal("expected an error for a unix address with no path/abstract/dir/tmpdir")
	}
}

func TestParseNonceTCPMissingNoncefile(t *testing.T) {
	_, err := Parse("nonce-tcp:host=h,port=1")
	if err == nil {
		t.Fatal("expected an error for nonce-tcp missing noncefile")
	}
}

func TestParseVsockMissingKeys(t *testing.T) {
	if _, err := Parse("vsock:cid=3"); err == nil {
		t.Fatal("expected an error for vsock missing port")
	}
	if _, err := Parse("vsock:port=3"); err == nil {
		t.Fatal("expected an error for vsock missing cid")
	}
}

func TestParseLaunchdMissingEnv(t *testing.T) {
	if _, err := Parse("launchd:"); err == nil {
		t.Fatal("expected an error for launchd missing env")
	}
}

func TestParseUnknownTransport(t *testing.T) {
	if _, err := Parse("carrier-pigeon:"); err == nil {
		t.Fatal("expected an error for an unknown transport")
	}
}

func TestParseDuplicateKey(t *testing.T) {
	if _, err := Parse("unix:path=/a,path=/b"); err == nil {
		t.Fatal("expected an error for a duplicate key")
	}
}

func TestParseMalformedPercentEscape(t *testing.T) {
	if _, err := Parse("unix:path=%zz"); err == nil {
		t.Fatal("expected an error for a malformed percent-escape")
	}
}

func TestParseEmptyString(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected an error for an empty address string")
	}
}
