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
// Package engine implements the Geonetworking router's core: the
// single-threaded main loop that owns station identity and position, all
// buffers and tables, and dispatches ingress frames to the forwarding
// algorithms and egress frames through the Limeric rate controller. It is
// the direct analogue of the teacher's bgp.Pool/bgp.Session — one
// goroutine owning all mutable state, driven by channel-isolated requests
// from everything else (§9, "Global state: there is none. The engine is a
// value; all configuration is passed at construction").
package engine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/veloce/gnrouter/buffer"
	"github.com/veloce/gnrouter/config"
	"github.com/veloce/gnrouter/device"
	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/gnss"
	gnlog "github.com/veloce/gnrouter/log"
	"github.com/veloce/gnrouter/limeric"
	"github.com/veloce/gnrouter/loctable"
	"github.com/veloce/gnrouter/locservice"
	"github.com/veloce/gnrouter/metrics"
	"github.com/veloce/gnrouter/security"
	"github.com/veloce/gnrouter/socket"
)

// MaxPollFailures is the consecutive-poll-error budget; reaching it aborts
// the engine (§4.8, §7 Fatal::PollStorm).
const MaxPollFailures = 10_000

// MaxIngressBurst bounds how many frames a single RunOnce ingress pass will
// drain from the device before moving on to the core/egress poll, so one
// saturated link cannot starve beacon/LS/CBF housekeeping.
const MaxIngressBurst = 256

// DefaultBitrateBps estimates the over-the-air transmission duration fed
// to the Limeric controller's NotifyTx, in the absence of a device that
// reports its own per-frame duration. 6 Mbps is the most common ITU-R
// default PHY rate for 802.11p control-channel traffic.
const DefaultBitrateBps = 6_000_000.0

// Deps bundles the external collaborators the engine is constructed with —
// every one of §6's boundary traits/interfaces, plus the ambient stack
// wired in by SPEC_FULL.md §3A/§3B.
type Deps struct {
	Device   device.Device
	Security security.Service
	Storage  security.Storage
	GNSS     gnss.Source
	Sockets  *socket.Set
	Log      gnlog.Notifier
	Metrics  *metrics.Registry
}

// Engine is the router core.
type Engine struct {
	cfg  config.Config
	deps Deps
	log  gnlog.Notifier

	loctable   *loctable.Table
	locserv    *locservice.Service
	ucBuf      *buffer.Buffer
	bcBuf      *buffer.Buffer
	lsBuf      *buffer.Buffer
	contention *buffer.ContentionBuffer
	rate       *limeric.Controller

	ownAddr   gnaddr.Address
	ownPV     gnaddr.LongPV
	ownSeq    gnaddr.SeqNumber
	timestamp time.Time
	rnd       *rand.Rand

	nextBeaconAt   time.Time
	pollErrors     int
	prevNeighbours []*loctable.Entry

	egressFIFO []framedPacket

	statusMu sync.Mutex
	status   Status

	stop chan struct{}
}

type framedPacket struct {
	bytes []byte
}

// Status is the one piece of engine state read from other goroutines (the
// Supervisor and whoever reads it) — mutex-guarded exactly
// like the teacher's Session.status, since everything else is owned
// exclusively by the single loop goroutine (§5).
type Status struct {
	Timestamp         time.Time
	NeighbourCount    int
	LocationTableSize int
	LSPending         int
	DutyCycle         float64
	TxInterval        time.Duration
}

// New constructs an Engine for station ownAddr, with the given
// configuration and dependencies. seed drives the beacon jitter generator.
func New(cfg config.Config, deps Deps, ownAddr gnaddr.Address, seed int64) *Engine {
	if deps.Log == nil {
		deps.Log = gnlog.Nil{}
	}
	if deps.Security == nil {
		deps.Security = security.NoopService{}
	}
	if deps.Sockets == nil {
		deps.Sockets = socket.NewSet()
	}
	e := &Engine{
		cfg:        cfg,
		deps:       deps,
		log:        deps.Log,
		loctable:   loctable.New(),
		locserv:    locservice.New(),
		ucBuf:      buffer.NewUC(),
		bcBuf:      buffer.NewBC(),
		lsBuf:      buffer.NewLS(),
		contention: buffer.NewDefaultContention(),
		rate:       limeric.New(limeric.Default()),
		ownAddr:    ownAddr,
		rnd:        rand.New(rand.NewSource(seed)),
		stop:       make(chan struct{}),
	}
	if cfg.DualAlphaEnabled {
		e.rate.EnableDualAlpha(limeric.DefaultDualAlpha())
	}
	e.ownPV = gnaddr.LongPV{Address: ownAddr}
	e.nextBeaconAt = time.Time{}
	return e
}

// SetPosition refreshes the station's own position vector from a GNSS fix.
// The timestamp field is reset to the milliseconds elapsed since
// 2004-01-01 00:00 UTC, mod 2^32. Leap seconds inserted since 2004 are not
// counted, since time.Time arithmetic ignores them.
func (e *Engine) SetPosition(fix gnss.Fix, now time.Time) {
	e.ownPV.Latitude = int32(fix.LatitudeDeg * 1e7)
	e.ownPV.Longitude = int32(fix.LongitudeDeg * 1e7)
	e.ownPV.Speed = int16(fix.SpeedMPS * 100)
	e.ownPV.Heading = uint16(fix.HeadingDeg*10) % 3600
	e.ownPV.Accurate = fix.Accurate
	e.ownPV.Timestamp = gnaddr.PVTimestamp(now.Sub(time.Date(2004, 1, 1, 0, 0, 0, 0, time.UTC)).Milliseconds())
}

// OwnPosition returns the station's current position vector.
func (e *Engine) OwnPosition() gnaddr.LongPV { return e.ownPV }

// Loctable returns the engine's Location Table, for read-only use by
// external monitors (e.g. netmon.Monitor) — every mutating method on it is
// still only ever called from the engine's own goroutine.
func (e *Engine) Loctable() *loctable.Table { return e.loctable }

// nextSeq returns the router's next own sequence number, advancing the
// counter.
func (e *Engine) nextSeq() gnaddr.SeqNumber {
	s := e.ownSeq
	e.ownSeq = e.ownSeq.Next()
	return s
}

// snapshotStatus recomputes and publishes Status under the mutex, for
// Status() to read from any goroutine.
func (e *Engine) snapshotStatus(now time.Time) {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	e.status = Status{
		Timestamp:         now,
		NeighbourCount:    len(e.loctable.NeighbourList()),
		LocationTableSize: e.loctable.Len(),
		LSPending:         e.lsPendingCount(),
		DutyCycle:         e.rate.DutyCycle(),
		TxInterval:        e.rate.TxInterval(),
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.NeighbourCount.Set(float64(e.status.NeighbourCount))
		e.deps.Metrics.LocationTableSize.Set(float64(e.status.LocationTableSize))
		e.deps.Metrics.LSPending.Set(float64(e.status.LSPending))
		e.deps.Metrics.DutyCycle.Set(e.status.DutyCycle)
		e.deps.Metrics.TxInterval.Set(e.status.TxInterval.Seconds())
	}
}

func (e *Engine) lsPendingCount() int {
	return e.locserv.PendingCount()
}

// Status returns the most recently published Status snapshot.
func (e *Engine) Status() Status {
	e.statusMu.Lock()
	defer e.statusMu.Unlock()
	return e.status
}
