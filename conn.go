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

	"github.com/go-dbuscore/dbuscore/internal/addr"
	"github.com/go-dbuscore/dbuscore/internal/auth"
)

// Dial parses address (D-Bus address grammar, possibly several ';'
// separated alternatives), connects to the first one that accepts a
// connection, authenticates, and issues Hello. The returned Conn is
// ready for Call/Subscribe.
//
// hs may be nil to use the default SASL EXTERNAL mechanism, the right
// choice for any local Unix-socket bus.
func Dial(ctx context.Context, address string, cfg *Config, hs auth.Handshake) (*Conn, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if hs == nil {
		hs = defaultAuth()
	}

	descs, err := addr.Parse(address)
	if err != nil {
		return nil, wrapErr(KindAddress, err, "parsing address %q", address)
	}

	bound, err := bindAddresses(descs, cfg, hs)
	if err != nil {
		return nil, err
	}

	raw := NewRawConn(bound.socket, bound.socket, bound.auth.Leftover, cfg.outQueueLen())
	c := newConn(raw, cfg)

	if err := hello(ctx, c); err != nil {
		c.Close()
		return nil, err
	}

	cfg.logger().WithFields(connLogFields(c.id)).WithField("address", bound.descStr).Info("dbuscore: connected")
	return c, nil
}

// SessionBus dials the bus named by DBUS_SESSION_BUS_ADDRESS.
func SessionBus(ctx context.Context, cfg *Config) (*Conn, error) {
	a, err := sessionBusAddress()
	if err != nil {
		return nil, err
	}
	return Dial(ctx, a, cfg, nil)
}

// SystemBus dials the system bus, honoring DBUS_SYSTEM_BUS_ADDRESS if set
// and falling back to the well-known Unix socket path otherwise.
func SystemBus(ctx context.Context, cfg *Config) (*Conn, error) {
	return Dial(ctx, systemBusAddress(), cfg, nil)
}

// StarterBus dials the bus an activated service was launched to talk
// back to, per DBUS_STARTER_ADDRESS.
func StarterBus(ctx context.Context, cfg *Config) (*Conn, error) {
	a, err := starterBusAddress()
	if err != nil {
		return nil, err
	}
	return Dial(ctx, a, cfg, nil)
}
