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
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
)

// fakeServer is a ReadHalf/WriteHalf pair that plays the bus side of the
// EXTERNAL exchange: it records what the client wrote and serves a
// canned server response.
type fakeServer struct {
	response string
	reader   *strings.Reader
	written  bytes.Buffer
}

func newFakeServer(response string) *fakeServer {
	return &fakeServer{response: response, reader: strings.NewReader(response)}
}

func (f *fakeServer) Read(p []byte) (int, error)  { return f.reader.Read(p) }
func (f *fakeServer) Write(p []byte) (int, error) { return f.written.Write(p) }

func TestExternalAuthenticateSuccess(t *testing.T) {
	srv := newFakeServer("OK 1234deadbeef\r\n")
	e := &External{Getuid: func() int { return 1000 }}

	res, err := e.Authenticate(srv, srv, "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !res.UniqueNameReady {
		t.Error("UniqueNameReady = false, want true")
	}
	if res.GUID != "1234deadbeef" {
		t.Errorf("GUID = %q, want %q", res.GUID, "1234deadbeef")
	}

	wantIdent := hex.EncodeToString([]byte(strconv.Itoa(1000)))
	wire := srv.written.String()
	if !strings.Contains(wire, "AUTH EXTERNAL "+wantIdent+"\r\n") {
		t.Errorf("wire data %q missing expected AUTH EXTERNAL line", wire)
	}
	if !strings.HasSuffix(wire, "BEGIN\r\n") {
		t.Errorf("wire data %q does not end with BEGIN", wire)
	}
	if wire[0] != 0 {
		t.Error("first byte written was not the leading NUL")
	}
}

func TestExternalAuthenticateGUIDMismatch(t *testing.T) {
	srv := newFakeServer("OK aaaa\r\n")
	e := &External{Getuid: func() int { return 0 }}

	_, err := e.Authenticate(srv, srv, "bbbb")
	if err == nil {
		t.Fatal("expected an error on GUID mismatch")
	}
}

func TestExternalAuthenticateGUIDMatch(t *testing.T) {
	srv := newFakeServer("OK aaaa\r\n")
	e := &External{Getuid: func() int { return 0 }}

	res, err := e.Authenticate(srv, srv, "aaaa")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.GUID != "aaaa" {
		t.Errorf("GUID = %q, want %q", res.GUID, "aaaa")
	}
}

func TestExternalAuthenticateRejected(t *testing.T) {
	srv := newFakeServer("REJECTED EXTERNAL ANONYMOUS\r\n")
	e := &External{Getuid: func() int { return 0 }}

	if _, err := e.Authenticate(srv, srv, ""); err == nil {
		t.Fatal("expected an error when the server rejects EXTERNAL")
	}
}

func TestExternalAuthenticateNoGUIDInResponse(t *testing.T) {
	srv := newFakeServer("OK\r\n")
	e := &External{Getuid: func() int { return 0 }}

	res, err := e.Authenticate(srv, srv, "")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.GUID != "" {
		t.Errorf("GUID = %q, want empty", res.GUID)
	}
}
