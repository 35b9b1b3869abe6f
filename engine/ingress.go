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
	"time"

	"github.com/veloce/gnrouter/buffer"
	"github.com/veloce/gnrouter/config"
	"github.com/veloce/gnrouter/forward"
	"github.com/veloce/gnrouter/gnaddr"
	gnlog "github.com/veloce/gnrouter/log"
	"github.com/veloce/gnrouter/loctable"
	"github.com/veloce/gnrouter/security"
	"github.com/veloce/gnrouter/socket"
	"github.com/veloce/gnrouter/wire"
)

// ingressPoll drains up to MaxIngressBurst frames from the device, handing
// each to handleFrame.
func (e *Engine) ingressPoll(now time.Time) {
	for i := 0; i < MaxIngressBurst; i++ {
		rx, _, ok := e.deps.Device.Receive(now)
		if !ok {
			return
		}
		err := rx.Consume(func(payload []byte) error {
			e.handleFrame(now, payload, rx.Source())
			return nil
		})
		if err != nil {
			e.notePollError()
			e.log.WARNING("ingress", gnlog.KV{"error": err.Error()})
		} else {
			e.noteProgress()
		}
	}
}

func (e *Engine) notePollError() {
	e.pollErrors++
}

func (e *Engine) noteProgress() {
	e.pollErrors = 0
}

// handleFrame parses and dispatches one inbound GN frame arriving from the
// link-layer address sender (§4.8 ingress processing / §4.6 forwarding).
func (e *Engine) handleFrame(now time.Time, raw []byte, sender [6]byte) {
	basic, common, rest, err := wire.SplitFrame(raw)
	if err != nil {
		e.drop("parse", err)
		return
	}

	switch basic.NextHeader {
	case wire.NextHeaderCommon:
		// already parsed by SplitFrame
	case wire.NextHeaderSecured:
		payload, report, _, err := e.deps.Security.Decap(rest, now)
		if err != nil {
			e.drop("security", err)
			return
		}
		if report != security.Correct {
			if e.cfg.SnDecapResultHandling == config.Strict {
				e.drop("security", nil)
				return
			}
			e.log.WARNING("security", gnlog.KV{"report": report, "sender": sender})
		}
		common, err = wire.ParseCommonHeader(payload)
		if err != nil {
			e.drop("parse", err)
			return
		}
		rest = payload[wire.CommonHeaderLen:]
	default:
		return
	}

	switch common.HeaderType {
	case wire.HeaderTypeBeacon:
		e.handleBeacon(now, rest, sender, len(raw))
	case wire.HeaderTypeSHB:
		e.handleSHB(now, rest, common, sender, len(raw))
	case wire.HeaderTypeTSB:
		e.handleTSB(now, basic, common, rest, sender, len(raw))
	case wire.HeaderTypeGUC:
		e.handleGUC(now, basic, common, rest, sender, len(raw))
	case wire.HeaderTypeLSRequest:
		e.handleLSRequest(now, basic, common, rest, sender, len(raw))
	case wire.HeaderTypeLSReply:
		e.handleLSReply(now, rest, sender, len(raw))
	case wire.HeaderTypeGACCircle, wire.HeaderTypeGACRect, wire.HeaderTypeGACEllipse:
		e.handleGeoArea(now, basic, common, rest, sender, len(raw), false)
	case wire.HeaderTypeGBCCircle, wire.HeaderTypeGBCRect, wire.HeaderTypeGBCEllipse:
		e.handleGeoArea(now, basic, common, rest, sender, len(raw), true)
	default:
		e.drop("unknown-header-type", nil)
	}
}

// splitExt splits rest into its first n bytes (the extended header) and
// whatever follows (the upper-layer payload), reporting false if rest is
// too short to contain n bytes at all.
func splitExt(rest []byte, n int) (ext, tail []byte, ok bool) {
	if len(rest) < n {
		return nil, nil, false
	}
	return rest[:n], rest[n:], true
}

func (e *Engine) drop(reason string, err error) {
	if e.deps.Metrics != nil {
		e.deps.Metrics.BufferDrops.WithLabelValues("ingress", reason).Inc()
	}
	if err != nil {
		e.log.WARNING("ingress", gnlog.KV{"reason": reason, "error": err.Error()})
	}
}

func (e *Engine) handleBeacon(now time.Time, rest []byte, sender [6]byte, size int) {
	b, err := wire.ParseBeacon(rest)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, b.SourcePV, true, size)
}

func loctableExtension(m wire.DccMco) loctable.G5Extension {
	return loctable.G5Extension{LocalCBR: m.CBRL0Hop, OneHopCBR: m.CBRL1Hop, TxPowerDBm: m.TxPowerDBm}
}

func (e *Engine) handleSHB(now time.Time, rest []byte, common wire.CommonHeader, sender [6]byte, size int) {
	ext, payload, ok := splitExt(rest, wire.SHBHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	s, err := wire.ParseSHB(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, s.SourcePV, true, size)
	if s.DccMco != nil {
		e.loctable.RecordExtension(sender, now, loctableExtension(*s.DccMco))
	}
	e.deliverUpper(common, payload)
}

func (e *Engine) handleTSB(now time.Time, basic wire.BasicHeader, common wire.CommonHeader, rest []byte, sender [6]byte, size int) {
	ext, payload, ok := splitExt(rest, wire.TSBHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	t, err := wire.ParseTSB(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, t.SourcePV, false, size)
	if forward.Duplicate(e.loctable, t.SourcePV.Address, t.SequenceNumber, now) {
		e.outcome("tsb", forward.OutcomeDropped)
		return
	}
	e.deliverUpper(common, payload)

	if basic.RemainingHopLimit <= 1 {
		return
	}
	basic.RemainingHopLimit--
	frame, err := wire.BuildFrame(basic, common, ext, payload)
	if err != nil {
		return
	}
	e.enqueueEgress(now, frame)
	e.outcome("tsb", forward.OutcomeForwarded)
}

func (e *Engine) handleGUC(now time.Time, basic wire.BasicHeader, common wire.CommonHeader, rest []byte, sender [6]byte, size int) {
	ext, payload, ok := splitExt(rest, wire.GUCHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	g, err := wire.ParseGUC(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, g.SourcePV, false, size)

	if g.DestinationPV.Address.Equal(e.ownAddr) {
		e.deliverUpper(common, payload)
		e.outcome("guc", forward.OutcomeDelivered)
		return
	}
	if forward.Duplicate(e.loctable, g.SourcePV.Address, g.SequenceNumber, now) {
		e.outcome("guc", forward.OutcomeDropped)
		return
	}
	if basic.RemainingHopLimit == 0 {
		e.outcome("guc", forward.OutcomeDropped)
		return
	}
	basic.RemainingHopLimit--
	e.forwardUnicast(now, basic, common, ext, payload, g.DestinationPV, sender, g.SourcePV.Address, g.SequenceNumber)
}

// forwardUnicast runs the configured non-area forwarding algorithm
// (greedy or CBF, §4.6.1/4.6.2) against a GUC/LS-Reply shaped packet whose
// extended header bytes are already built.
func (e *Engine) forwardUnicast(now time.Time, basic wire.BasicHeader, common wire.CommonHeader, ext, payload []byte, destSPV gnaddr.ShortPV, sender [6]byte, originator gnaddr.Address, seq gnaddr.SeqNumber) {
	destPoint := forward.Point{LatitudeDeg: float64(destSPV.Latitude) / 1e7, LongitudeDeg: float64(destSPV.Longitude) / 1e7}
	selfPoint := forward.Point{LatitudeDeg: e.ownPV.LatitudeDegrees(), LongitudeDeg: e.ownPV.LongitudeDegrees()}

	if e.cfg.NonAreaForwarding == config.NonAreaCBF {
		id := buffer.CbfID{Originator: originator, Seq: seq}
		senderPoint := selfPoint
		if se := e.loctable.Find(sender); se != nil {
			senderPoint = forward.Point{LatitudeDeg: se.PositionVector.LatitudeDegrees(), LongitudeDeg: se.PositionVector.LongitudeDegrees()}
		}
		dist := forward.HaversineMeters(senderPoint, selfPoint)
		timer := buffer.CBFTimer(dist, e.cfg.DefaultMaxCommRangeM)
		meta := buffer.Meta{HeaderSize: wire.BasicHeaderLen + wire.CommonHeaderLen + len(ext), Lifetime: basic.Lifetime}
		frame, err := wire.BuildFrame(basic, common, ext, payload)
		if err != nil {
			return
		}
		if err := e.contention.Enqueue(meta, frame, id, timer, now, sender); err != nil {
			e.outcome("unicast-cbf", forward.OutcomeDropped)
			return
		}
		e.outcome("unicast-cbf", forward.OutcomeBuffered)
		return
	}

	nextHop, ok := forward.GreedyUnicast(e.loctable, selfPoint, destPoint)
	frame, err := wire.BuildFrame(basic, common, ext, payload)
	if err != nil {
		return
	}
	if !ok {
		key := originatorKey(originator)
		_ = e.ucBuf.Enqueue(buffer.Entry{
			Key:       key,
			Meta:      buffer.Meta{HeaderSize: wire.BasicHeaderLen + wire.CommonHeaderLen + len(ext), Lifetime: basic.Lifetime},
			Payload:   frame,
			Size:      len(frame),
			ExpiresAt: now.Add(basic.Lifetime),
		})
		e.outcome("unicast-greedy", forward.OutcomeBuffered)
		return
	}
	_ = nextHop
	e.enqueueEgress(now, frame)
	e.outcome("unicast-greedy", forward.OutcomeForwarded)
}

func originatorKey(a gnaddr.Address) [6]byte { return a.LinkAddr }

func (e *Engine) handleGeoArea(now time.Time, basic wire.BasicHeader, common wire.CommonHeader, rest []byte, sender [6]byte, size int, broadcast bool) {
	ext, payload, ok := splitExt(rest, wire.GeoAreaHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	g, err := wire.ParseGeoArea(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, g.SourcePV, false, size)

	area := areaFromRepr(common.HeaderType, g)
	selfPoint := forward.Point{LatitudeDeg: e.ownPV.LatitudeDegrees(), LongitudeDeg: e.ownPV.LongitudeDegrees()}

	if area.Contains(selfPoint) {
		e.deliverUpper(common, payload)
	}
	if !broadcast {
		return // GAC: anycast, single delivery only, no forward.
	}
	if forward.Duplicate(e.loctable, g.SourcePV.Address, g.SequenceNumber, now) {
		e.outcome("area", forward.OutcomeDropped)
		return
	}
	if basic.RemainingHopLimit == 0 {
		e.outcome("area", forward.OutcomeDropped)
		return
	}
	basic.RemainingHopLimit--

	if e.cfg.AreaForwarding == config.AreaCBF {
		id := buffer.CbfID{Originator: g.SourcePV.Address, Seq: g.SequenceNumber}
		senderPoint := selfPoint
		if se := e.loctable.Find(sender); se != nil {
			senderPoint = forward.Point{LatitudeDeg: se.PositionVector.LatitudeDegrees(), LongitudeDeg: se.PositionVector.LongitudeDegrees()}
		}
		dist := forward.HaversineMeters(senderPoint, selfPoint)
		timer := buffer.CBFTimer(dist, e.cfg.DefaultMaxCommRangeM)
		meta := buffer.Meta{HeaderSize: wire.BasicHeaderLen + wire.CommonHeaderLen + len(ext), Lifetime: basic.Lifetime}
		frame, err := wire.BuildFrame(basic, common, ext, payload)
		if err != nil {
			return
		}
		if err := e.contention.Enqueue(meta, frame, id, timer, now, sender); err != nil {
			e.outcome("area-cbf", forward.OutcomeDropped)
			return
		}
		e.outcome("area-cbf", forward.OutcomeBuffered)
		return
	}

	frame, err := wire.BuildFrame(basic, common, ext, payload)
	if err != nil {
		return
	}
	targets := forward.SimpleAreaFlood(e.loctable, area, basic.RemainingHopLimit)
	if len(targets) == 0 {
		// No neighbour inside the area yet: park it for retry as the
		// neighbour table changes (§3C, adapted from the UC-buffer retry
		// idiom for the area-broadcast case).
		_ = e.bcBuf.Enqueue(buffer.Entry{
			Key:       originatorKey(g.SourcePV.Address),
			Meta:      buffer.Meta{HeaderSize: wire.BasicHeaderLen + wire.CommonHeaderLen + len(ext), Lifetime: basic.Lifetime},
			Payload:   frame,
			Size:      len(frame),
			ExpiresAt: now.Add(basic.Lifetime),
		})
		e.outcome("area-simple", forward.OutcomeBuffered)
		return
	}
	e.enqueueEgress(now, frame)
	e.outcome("area-simple", forward.OutcomeForwarded)
}

func shapeFromHeaderType(h wire.HeaderType) forward.Shape {
	switch h {
	case wire.HeaderTypeGACRect, wire.HeaderTypeGBCRect:
		return forward.ShapeRectangle
	case wire.HeaderTypeGACEllipse, wire.HeaderTypeGBCEllipse:
		return forward.ShapeEllipse
	default:
		return forward.ShapeCircle
	}
}

func areaFromRepr(h wire.HeaderType, g wire.GeoAreaRepr) forward.Area {
	return forward.Area{
		Shape:        shapeFromHeaderType(h),
		Centre:       forward.Point{LatitudeDeg: g.LatitudeDegrees(), LongitudeDeg: g.LongitudeDegrees()},
		DistanceA:    float64(g.DistanceA),
		DistanceB:    float64(g.DistanceB),
		AngleDegrees: float64(g.AngleDegrees),
	}
}

// retryBroadcastBuffer re-evaluates every parked area-broadcast frame
// against the current neighbour table, releasing it once a neighbour
// inside its area has appeared, dropping it once its lifetime has passed,
// and re-parking it otherwise.
func (e *Engine) retryBroadcastBuffer(now time.Time) {
	pending := e.bcBuf.Drain()
	for _, ent := range pending {
		if !ent.ExpiresAt.After(now) {
			e.outcome("area-simple", forward.OutcomeDropped)
			continue
		}
		basic, common, rest, err := wire.SplitFrame(ent.Payload)
		if err != nil {
			continue
		}
		ext, _, ok := splitExt(rest, wire.GeoAreaHeaderLen)
		if !ok {
			continue
		}
		g, err := wire.ParseGeoArea(ext)
		if err != nil {
			continue
		}
		area := areaFromRepr(common.HeaderType, g)
		if len(forward.SimpleAreaFlood(e.loctable, area, basic.RemainingHopLimit)) == 0 {
			_ = e.bcBuf.Enqueue(ent)
			continue
		}
		e.enqueueEgress(now, ent.Payload)
		e.outcome("area-simple", forward.OutcomeForwarded)
	}
}

// retryUnicastBuffer re-evaluates every parked greedy-unicast frame against
// the current neighbour table, releasing it once a neighbour making
// progress toward its destination has appeared, dropping it once its
// lifetime has passed, and re-parking it otherwise (spec §4.6.1's "enqueue in
// the UC buffer for retry on neighbour-table change", mirroring
// retryBroadcastBuffer's treatment of the area-broadcast buffer above).
func (e *Engine) retryUnicastBuffer(now time.Time) {
	pending := e.ucBuf.Drain()
	selfPoint := forward.Point{LatitudeDeg: e.ownPV.LatitudeDegrees(), LongitudeDeg: e.ownPV.LongitudeDegrees()}
	for _, ent := range pending {
		if !ent.ExpiresAt.After(now) {
			e.outcome("unicast-greedy", forward.OutcomeDropped)
			continue
		}
		_, _, rest, err := wire.SplitFrame(ent.Payload)
		if err != nil {
			continue
		}
		ext, _, ok := splitExt(rest, wire.GUCHeaderLen)
		if !ok {
			continue
		}
		g, err := wire.ParseGUC(ext)
		if err != nil {
			continue
		}
		destPoint := forward.Point{LatitudeDeg: float64(g.DestinationPV.Latitude) / 1e7, LongitudeDeg: float64(g.DestinationPV.Longitude) / 1e7}
		if _, ok := forward.GreedyUnicast(e.loctable, selfPoint, destPoint); !ok {
			_ = e.ucBuf.Enqueue(ent)
			continue
		}
		e.enqueueEgress(now, ent.Payload)
		e.outcome("unicast-greedy", forward.OutcomeForwarded)
	}
}

func (e *Engine) handleLSRequest(now time.Time, basic wire.BasicHeader, common wire.CommonHeader, rest []byte, sender [6]byte, size int) {
	ext, _, ok := splitExt(rest, wire.LSRequestHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	l, err := wire.ParseLSRequest(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, l.SourcePV, false, size)

	if l.RequestAddress.Equal(e.ownAddr) {
		e.sendLSReply(now, l.SourcePV)
	}

	newRHL, rebroadcast := forward.TSBForward(e.loctable, l.SourcePV.Address, l.SequenceNumber, basic.RemainingHopLimit, now)
	if !rebroadcast {
		return
	}
	basic.RemainingHopLimit = newRHL
	frame, err := wire.BuildFrame(basic, common, ext, nil)
	if err != nil {
		return
	}
	e.enqueueEgress(now, frame)
	e.outcome("ls-request", forward.OutcomeForwarded)
}

func (e *Engine) handleLSReply(now time.Time, rest []byte, sender [6]byte, size int) {
	ext, _, ok := splitExt(rest, wire.GUCHeaderLen)
	if !ok {
		e.drop("truncated", nil)
		return
	}
	g, err := wire.ParseGUC(ext)
	if err != nil {
		e.drop("parse", err)
		return
	}
	e.loctable.Update(now, g.SourcePV, false, size)
	if !e.locserv.Resolve(g.SourcePV.Address) {
		return
	}
	key := originatorKey(g.SourcePV.Address)
	for _, ent := range e.lsBuf.DequeueKey(key) {
		e.enqueueEgress(now, ent.Payload)
	}
}

func (e *Engine) deliverUpper(common wire.CommonHeader, payload []byte) {
	if e.deps.Sockets == nil {
		return
	}
	var kind socket.Kind
	switch common.UpperProtocol {
	case wire.UpperProtocolBTPA:
		kind = socket.BTPA
	case wire.UpperProtocolBTPB:
		kind = socket.BTPB
	default:
		return
	}
	for _, s := range e.deps.Sockets.ByKind(kind) {
		s.Deliver(payload)
	}
}

func (e *Engine) outcome(algo string, o forward.Outcome) {
	if e.deps.Metrics == nil {
		return
	}
	e.deps.Metrics.ForwardOutcomes.WithLabelValues(algo, outcomeString(o)).Inc()
}

func outcomeString(o forward.Outcome) string {
	switch o {
	case forward.OutcomeForwarded:
		return "forwarded"
	case forward.OutcomeBuffered:
		return "buffered"
	case forward.OutcomeDropped:
		return "dropped"
	case forward.OutcomeDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}
