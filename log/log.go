/*
 * VC5 load balancer. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */
// Package log defines the router's logging surface: a small notification
// interface, mirroring the teacher's own log.Log/log.Nil split, backed by
// github.com/rs/zerolog instead of a bare Printf.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// KV is a structured field set attached to a single log line, matching the
// teacher's own map[string]any notification payloads.
type KV = map[string]any

// Notifier is the logging interface consumed throughout the router. It
// mirrors the teacher's log.Log shape — typed notification methods rather
// than a generic Printf — but is leveled since zerolog makes that nearly
// free.
type Notifier interface {
	DEBUG(facility string, kv KV)
	INFO(facility string, kv KV)
	NOTICE(facility string, kv KV)
	WARNING(facility string, kv KV)
	ERR(facility string, kv KV)
}

// Nil is the no-op Notifier, used where the caller supplied none — same
// role as the teacher's log.Nil{}.
type Nil struct{}

func (Nil) DEBUG(string, KV)   {}
func (Nil) INFO(string, KV)    {}
func (Nil) NOTICE(string, KV)  {}
func (Nil) WARNING(string, KV) {}
func (Nil) ERR(string, KV)     {}

// Zerolog is the concrete Notifier backend used outside of tests.
type Zerolog struct {
	logger zerolog.Logger
}

// New constructs a Zerolog notifier writing to w (os.Stderr if nil) in the
// console-pretty format when pretty is true, else newline-delimited JSON.
func New(w io.Writer, pretty bool) *Zerolog {
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()
	return &Zerolog{logger: logger}
}

func (z *Zerolog) event(e *zerolog.Event, facility string, kv KV) {
	e = e.Str("facility", facility)
	for k, v := range kv {
		e = e.Interface(k, v)
	}
	e.Send()
}

func (z *Zerolog) DEBUG(facility string, kv KV)   { z.event(z.logger.Debug(), facility, kv) }
func (z *Zerolog) INFO(facility string, kv KV)    { z.event(z.logger.Info(), facility, kv) }
func (z *Zerolog) NOTICE(facility string, kv KV)  { z.event(z.logger.Info(), facility, kv) }
func (z *Zerolog) WARNING(facility string, kv KV) { z.event(z.logger.Warn(), facility, kv) }
func (z *Zerolog) ERR(facility string, kv KV)     { z.event(z.logger.Error(), facility, kv) }
