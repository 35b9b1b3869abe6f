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
// Package netmon flap-damps neighbour reachability: it periodically samples
// the Location Table's neighbour set and reports each link address as
// up/down only once a majority of the last five samples agree, so a single
// missed beacon does not flap a neighbour's reported status. It is adapted
// from the teacher's mon.Mon goroutine-per-instance design
// (mon/mon.go, Mon.monitor) onto Geonetworking neighbour tracking instead of
// HTTP/TCP backend health checks.
package netmon

import (
	"sync"
	"time"

	"github.com/veloce/gnrouter/loctable"
)

// historyLen is the number of recent samples a majority vote is taken over,
// matching the teacher's 5-sample window in mon.Mon.monitor.
const historyLen = 5

// Notifier receives neighbour up/down transitions, the netmon analogue of
// the teacher's mon.Notifier.
type Notifier interface {
	NeighbourUp(linkAddr [6]byte)
	NeighbourDown(linkAddr [6]byte)
}

type neighbourState struct {
	history [historyLen]bool
	up      bool
	seen    int
}

// Monitor samples a *loctable.Table on a fixed interval and reports
// debounced up/down transitions on C.
type Monitor struct {
	// C receives a value whenever any neighbour's debounced status
	// changes, mirroring the teacher's Mon.C.
	C chan bool

	Notifier Notifier
	Interval time.Duration

	table *loctable.Table

	mutex sync.Mutex
	state map[[6]byte]*neighbourState

	stop chan struct{}
}

// New constructs a Monitor sampling table every interval (2s if zero, as in
// the teacher's ticker).
func New(table *loctable.Table, notifier Notifier, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Monitor{
		C:        make(chan bool, 1),
		Notifier: notifier,
		Interval: interval,
		table:    table,
		state:    make(map[[6]byte]*neighbourState),
		stop:     make(chan struct{}),
	}
}

// Start launches the sampling goroutine.
func (m *Monitor) Start() {
	go m.run()
}

// Stop halts sampling.
func (m *Monitor) Stop() {
	close(m.stop)
}

// Up reports whether linkAddr is currently a debounced-up neighbour.
func (m *Monitor) Up(linkAddr [6]byte) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s, ok := m.state[linkAddr]
	return ok && s.up
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	present := make(map[[6]byte]bool)
	for _, e := range m.table.NeighbourList() {
		present[e.PositionVector.Address.LinkAddr] = true
	}

	m.mutex.Lock()
	changed := false
	for addr := range present {
		s, ok := m.state[addr]
		if !ok {
			s = &neighbourState{}
			m.state[addr] = s
		}
		if m.recordSample(s, true) {
			changed = true
		}
	}
	for addr, s := range m.state {
		if present[addr] {
			continue
		}
		if m.recordSample(s, false) {
			changed = true
		}
	}
	m.mutex.Unlock()

	if changed {
		select {
		case m.C <- true:
		default:
		}
	}
}

// recordSample pushes ok into s's history and applies the same flap
// damping the teacher's Mon.monitor uses: until 5 samples have been taken
// the status stays down; after that an up neighbour only goes down once
// fewer than 4 of the last 5 samples saw it, and a down neighbour only
// comes up once all 5 of the last 5 samples saw it. Returns whether s.up
// changed.
func (m *Monitor) recordSample(s *neighbourState, ok bool) bool {
	copy(s.history[0:], s.history[1:])
	s.history[historyLen-1] = ok
	if s.seen < historyLen {
		s.seen++
	}

	var passed int
	for _, v := range s.history {
		if v {
			passed++
		}
	}

	was := s.up
	if s.seen < historyLen {
		return false
	} else if was {
		if passed < 4 {
			s.up = false
		}
	} else {
		if passed > 4 {
			s.up = true
		}
	}

	if was == s.up {
		return false
	}
	if m.Notifier != nil {
		var addr [6]byte
		for a, st := range m.state {
			if st == s {
				addr = a
				break
			}
		}
		if s.up {
			m.Notifier.NeighbourUp(addr)
		} else {
			m.Notifier.NeighbourDown(addr)
		}
	}
	return true
}
