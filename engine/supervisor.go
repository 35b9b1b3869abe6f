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
package engine

import (
	"sync"
	"time"

	"github.com/veloce/gnrouter/config"
)

// Supervisor owns the engine's background goroutine and is the only piece
// of this package meant to be driven from outside code — everything else
// is the single loop goroutine's exclusive state (§9). It is the direct
// analogue of the teacher's Director: a mutex-guarded command surface in
// front of one background() goroutine, plus a best-effort notify channel.
type Supervisor struct {
	// C receives a value whenever the engine's published Status changes in
	// a way another component (such as a metrics scrape handler) might
	// care about. Like the teacher's Director.C, a
	// send never blocks: a reader that isn't ready for the previous
	// notification simply sees the coalesced latest state on its next read
	// of Status().
	C chan bool

	engine *Engine

	mutex   sync.Mutex
	running bool

	reconfigure chan config.Config
	done        chan error
}

// NewSupervisor wraps e for goroutine-managed operation.
func NewSupervisor(e *Engine) *Supervisor {
	return &Supervisor{
		engine:      e,
		C:           make(chan bool, 1),
		reconfigure: make(chan config.Config, 1),
		done:        make(chan error, 1),
	}
}

// Start launches the engine's main loop in a background goroutine. Calling
// Start twice without an intervening Stop is a caller bug and returns
// ErrAlreadyRunning.
func (s *Supervisor) Start() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	go s.background()
	return nil
}

// ErrAlreadyRunning is returned by Start when the supervisor is already
// running an engine loop.
var ErrAlreadyRunning = supervisorError("engine: supervisor already running")

type supervisorError string

func (e supervisorError) Error() string { return string(e) }

// Stop signals the background loop to exit after its current iteration and
// waits for it to do so, returning whatever error the loop exited with (nil
// on a clean Stop, non-nil on a Fatal::PollStorm abort).
func (s *Supervisor) Stop() error {
	s.mutex.Lock()
	if !s.running {
		s.mutex.Unlock()
		return nil
	}
	s.mutex.Unlock()

	s.engine.Stop()
	err := <-s.done

	s.mutex.Lock()
	s.running = false
	s.mutex.Unlock()
	return err
}

// Configure pushes a new configuration to the running engine, applied at
// the start of the loop's next iteration — matching the teacher's
// mutex-guarded Configure, adapted to this package's single-owner-goroutine
// rule: the swap itself happens inside background(), never here, so no
// engine field is ever touched from two goroutines at once.
func (s *Supervisor) Configure(cfg config.Config) {
	select {
	case s.reconfigure <- cfg:
	default:
		// A reconfigure is already pending; replace it rather than block,
		// since only the latest configuration matters.
		select {
		case <-s.reconfigure:
		default:
		}
		s.reconfigure <- cfg
	}
}

// Status returns the engine's most recently published status snapshot.
func (s *Supervisor) Status() Status { return s.engine.Status() }

func (s *Supervisor) background() {
	prev := s.engine.Status()

	for {
		select {
		case cfg := <-s.reconfigure:
			s.engine.cfg = cfg
		default:
		}

		now := time.Now()
		err := s.engine.RunOnce(now)
		cur := s.engine.Status()
		if statusChanged(prev, cur) {
			s.inform()
			prev = cur
		}
		if err != nil {
			s.done <- err
			return
		}

		select {
		case <-s.engine.stop:
			s.done <- nil
			return
		default:
		}

		wait := time.Until(s.engine.PollAt())
		if wait <= 0 {
			wait = time.Millisecond
		}
		if wait > 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}

		select {
		case <-s.engine.stop:
			s.done <- nil
			return
		case <-time.After(wait):
		}
	}
}

// statusChanged reports whether a and b differ in anything other than the
// timestamp, which advances every iteration regardless of whether anything
// else of interest happened.
func statusChanged(a, b Status) bool {
	return a.NeighbourCount != b.NeighbourCount ||
		a.LocationTableSize != b.LocationTableSize ||
		a.LSPending != b.LSPending ||
		a.DutyCycle != b.DutyCycle ||
		a.TxInterval != b.TxInterval
}

func (s *Supervisor) inform() {
	select {
	case s.C <- true:
	default:
	}
}
