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
	"fmt"
	"time"

	"github.com/veloce/gnrouter/forward"
	gnlog "github.com/veloce/gnrouter/log"
	"github.com/veloce/gnrouter/loctable"
	"github.com/veloce/gnrouter/security"
	"github.com/veloce/gnrouter/socket"
	"github.com/veloce/gnrouter/wire"
)

// ErrPollStorm is returned by Run when MaxPollFailures consecutive poll
// iterations have failed, per §7's Fatal::PollStorm.
type ErrPollStorm struct{ Failures int }

func (e *ErrPollStorm) Error() string {
	return fmt.Sprintf("engine: %d consecutive poll failures, aborting", e.Failures)
}

// RunOnce executes one full main-loop iteration at now (§4.8): ingress
// drain, GNSS update, core housekeeping (LS retransmits, beacon, CBF,
// security rotation), egress drain, and status snapshot.
func (e *Engine) RunOnce(now time.Time) error {
	e.timestamp = now

	e.ingressPoll(now)
	e.updatePosition(now)
	e.corePoll(now)
	e.egressPoll(now)
	e.snapshotStatus(now)

	if e.pollErrors >= MaxPollFailures {
		return &ErrPollStorm{Failures: e.pollErrors}
	}
	return nil
}

func (e *Engine) updatePosition(now time.Time) {
	if e.deps.GNSS == nil {
		return
	}
	if fix, ok := e.deps.GNSS.Fix(now); ok {
		e.SetPosition(fix, now)
	}
}

// corePoll drives every periodic housekeeping concern that isn't triggered
// by an inbound frame: Location Service retransmits/failures, the beacon
// schedule, Contention-Based Forwarding timers, Limeric's own recurrence,
// and security-service rotation events (§4.8).
func (e *Engine) corePoll(now time.Time) {
	e.pollLocationService(now)
	e.pollBeacon(now)
	e.pollContention(now)
	e.retryBroadcastBuffer(now)
	e.pollNeighbourChurn(now)
	e.pollSockets(now)
	e.rate.Run(now)
	e.pollSecurity(now)
}

// pollNeighbourChurn re-drains the unicast packet buffer whenever the
// neighbour set has changed since the last poll, per spec §4.6.1's "enqueue
// in the UC buffer for retry on neighbour-table change". Greedy-forwarded
// packets parked for lack of a progress-making neighbour are otherwise
// never revisited.
func (e *Engine) pollNeighbourChurn(now time.Time) {
	curr := e.loctable.NeighbourList()
	added, removed := loctable.NeighbourDiff(e.prevNeighbours, curr)
	if len(added) > 0 || len(removed) > 0 {
		e.retryUnicastBuffer(now)
	}
	e.prevNeighbours = curr
}

// pollSockets drains every upper-layer socket's due scheduled
// retransmissions (e.g. a DENM repetition interval, §6.3), encapsulating
// each as a Single-Hop Broadcast the same way a fresh application Send
// would and handing it to the egress FIFO.
func (e *Engine) pollSockets(now time.Time) {
	if e.deps.Sockets == nil {
		return
	}
	for h, payloads := range e.deps.Sockets.PollAll(now) {
		upper := wire.UpperProtocolBTPB
		if s := e.deps.Sockets.Get(h); s != nil && s.Kind == socket.BTPA {
			upper = wire.UpperProtocolBTPA
		}
		for _, payload := range payloads {
			if err := e.SendSHB(now, upper, payload); err != nil {
				e.log.WARNING("socket", gnlog.KV{"error": err.Error()})
			}
		}
	}
}

func (e *Engine) pollLocationService(now time.Time) {
	for _, h := range e.locserv.DueForRetransmit(now) {
		e.transmitLSRequest(now, h)
		e.locserv.Retransmitted(h, now)
	}
	for _, h := range e.locserv.Failed() {
		req, ok := e.locserv.Lookup(h)
		if ok {
			e.lsBuf.DequeueKey(req.Address.LinkAddr)
			if e.deps.Metrics != nil {
				e.deps.Metrics.LSFailed.Inc()
			}
			e.log.NOTICE("locservice", gnlog.KV{"address": req.Address.String()})
		}
		e.locserv.Cancel(h)
	}
}

func (e *Engine) pollBeacon(now time.Time) {
	if e.nextBeaconAt.IsZero() {
		e.nextBeaconAt = now
	}
	if now.Before(e.nextBeaconAt) {
		return
	}
	e.transmitBeacon(now)
	e.nextBeaconAt = forward.NextBeaconAt(now, e.rnd)
}

// transmitBeacon builds and sends a Beacon Extended Header carrying the
// station's own Long Position Vector (§4.6.7).
func (e *Engine) transmitBeacon(now time.Time) {
	b := wire.BeaconRepr{SourcePV: e.ownPV}
	ext := make([]byte, wire.BeaconHeaderLen)
	if err := b.Emit(ext); err != nil {
		return
	}
	common := wire.CommonHeader{HeaderType: wire.HeaderTypeBeacon, MaxHopLimit: 1}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: 1}
	frame, err := wire.BuildFrame(basic, common, ext, nil)
	if err != nil {
		return
	}
	e.enqueueEgress(now, frame)
}

func (e *Engine) pollContention(now time.Time) {
	for _, entry := range e.contention.DequeueExpired(now) {
		e.enqueueEgress(now, entry.Payload)
	}
}

func (e *Engine) pollSecurity(now time.Time) {
	if e.deps.Security == nil {
		return
	}
	evt, ok := e.deps.Security.Poll(now)
	if !ok {
		return
	}
	switch evt.Kind {
	case security.PrivacyATRotation:
		if e.deps.Storage == nil {
			return
		}
		stats := e.deps.Storage.IncrementElectionStats(evt.Index)
		if err := e.deps.Storage.StoreMetadata([]security.ElectionStats{stats}); err != nil {
			e.log.ERR("security", gnlog.KV{"error": err.Error()})
		}
	case security.ATExpiration:
		e.log.NOTICE("security", gnlog.KV{"index": evt.Index})
	}
}

// PollAt returns the earliest instant Run should next be invoked, computed
// from the Location Service's retransmit schedule, the beacon schedule,
// the contention buffer's CBF timers, and the Limeric controller's own
// recurrence (§4.8, "poll_at <- min(...)").
func (e *Engine) PollAt() time.Time {
	at := e.nextBeaconAt
	if a, ok := e.locserv.PollAt(); ok && (at.IsZero() || a.Before(at)) {
		at = a
	}
	if a, ok := e.contention.PollAt(); ok && (at.IsZero() || a.Before(at)) {
		at = a
	}
	if a := e.rate.RunAt(); at.IsZero() || a.Before(at) {
		at = a
	}
	if e.deps.GNSS != nil {
		if a, ok := e.deps.GNSS.PollAt(); ok && (at.IsZero() || a.Before(at)) {
			at = a
		}
	}
	if e.deps.Sockets != nil && e.deps.Sockets.HasPending() && (at.IsZero() || e.timestamp.Before(at)) {
		at = e.timestamp
	}
	return at
}

// Run drives the main loop until Stop is called or a fatal PollStorm
// occurs, sleeping between iterations for whatever PollAt reports is next
// due (§4.8). This is a pragmatic adaptation of the spec's level-triggered
// poll(events, timeout) primitive: without a real epoll integration to
// drive against, the loop wakes on a timer instead of I/O readiness,
// trading a little latency under load for portability across Device
// backends.
func (e *Engine) Run() error {
	for {
		select {
		case <-e.stop:
			return nil
		default:
		}

		now := time.Now()
		if err := e.RunOnce(now); err != nil {
			return err
		}

		wait := time.Until(e.PollAt())
		if wait <= 0 {
			wait = time.Millisecond
		}
		if wait > 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}

		select {
		case <-e.stop:
			return nil
		case <-time.After(wait):
		}
	}
}

// Stop signals Run to return after completing its current iteration.
func (e *Engine) Stop() {
	close(e.stop)
}
