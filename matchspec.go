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
	"strings"

	"github.com/go-dbuscore/dbuscore/internal/wire"
)

// matchCriteria is a parsed AddMatch rule, evaluated locally against every
// signal the bus delivers so one Subscribe call's queue never receives a
// signal meant for a different, overlapping rule on the same connection.
//
// argN value matching is deliberately not evaluated: message bodies are
// kept as opaque bytes (no zvariant codec in this library), so a rule
// with an argN key is accepted and registered on the bus as-is, but this
// client treats it as satisfied by any body. Callers needing argN
// filtering must decode bodies themselves and filter client-side.
type matchCriteria struct {
	msgType     string
	sender      string
	iface       string
	member      string
	path        string
	pathNS      string
	destination string
}

func parseMatchCriteria(rule string) matchCriteria {
	var c matchCriteria
	for _, kv := range splitMatchRule(rule) {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			continue
		}
		k := kv[:eq]
		v := strings.Trim(kv[eq+1:], "'")
		switch k {
		case "type":
			c.msgType = v
		case "sender":
			c.sender = v
		case "interface":
			c.iface = v
		case "member":
			c.member = v
		case "path":
			c.path = v
		case "path_namespace":
			c.pathNS = v
		case "destination":
			c.destination = v
		}
	}
	return c
}

// splitMatchRule splits on top-level commas, respecting single-quoted
// values the way the D-Bus match rule grammar requires (a quoted value
// may itself contain a comma).
func splitMatchRule(rule string) []string {
	var out []string
	inQuote := false
	start := 0
	for i := 0; i < len(rule); i++ {
		switch rule[i] {
		case '\'':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				out = append(out, rule[start:i])
				start = i + 1
			}
		}
	}
	out = append(out, rule[start:])
	return out
}

func msgTypeName(t wire.MsgType) string {
	switch t {
	case wire.MsgMethodCall:
		return "method_call"
	case wire.MsgMethodReturn:
		return "method_return"
	case wire.MsgError:
		return "error"
	case wire.MsgSignal:
		return "signal"
	default:
		return ""
	}
}

func (c matchCriteria) matches(msg *wire.Message) bool {
	if c.msgType != "" && c.msgType != msgTypeName(msg.Type) {
		return false
	}
	if c.sender != "" && c.sender != msg.Fields.Sender {
		return false
	}
	if c.iface != "" && c.iface != msg.Fields.Interface {
		return false
	}
	if c.member != "" && c.member != msg.Fields.Member {
		return false
	}
	if c.path != "" && c.path != msg.Fields.Path {
		return false
	}
	if c.pathNS != "" && msg.Fields.Path != c.pathNS && !strings.HasPrefix(msg.Fields.Path, c.pathNS+"/") {
		return false
	}
	if c.destination != "" && c.destination != msg.Fields.Destination {
		return false
	}
	return true
}
