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
	"github.com/veloce/gnrouter/gnaddr"
	"github.com/veloce/gnrouter/locservice"
	"github.com/veloce/gnrouter/security"
	"github.com/veloce/gnrouter/wire"
)

// enqueueEgress appends frame to the rate-limited egress FIFO, then
// immediately attempts to drain it — so a packet sent while the Limeric
// gate is already open leaves with no extra latency, and one still blocked
// by a prior transmission waits its turn in order (§5, "Egress: per access
// category, queued packets leave in FIFO order after tx_allowed_at").
func (e *Engine) enqueueEgress(now time.Time, frame []byte) {
	e.egressFIFO = append(e.egressFIFO, framedPacket{bytes: frame})
	e.egressPoll(now)
}

// egressPoll releases as many queued frames as the rate controller's gate
// and the device's transmit slot allow.
func (e *Engine) egressPoll(now time.Time) {
	for len(e.egressFIFO) > 0 && !now.Before(e.rate.TxAllowedAt()) {
		pkt := e.egressFIFO[0]
		if !e.transmitNow(now, pkt.bytes) {
			return
		}
		e.egressFIFO = e.egressFIFO[1:]
	}
}

// transmitNow hands frame to the device's transmit slot and notifies the
// rate controller of the airtime consumed. Returns false if no transmit
// slot is currently available (the caller should retry next poll).
func (e *Engine) transmitNow(now time.Time, frame []byte) bool {
	tok, ok := e.deps.Device.Transmit(now)
	if !ok {
		return false
	}
	err := tok.Consume(len(frame), func(buf []byte) error {
		copy(buf, frame)
		return nil
	})
	if err != nil {
		e.log.WARNING("egress", map[string]any{"error": err.Error()})
		return true
	}
	dur := time.Duration(float64(len(frame)) * 8.0 / DefaultBitrateBps * float64(time.Second))
	e.rate.NotifyTx(now, dur)
	return true
}

// sendSecured optionally runs payload through the security service before
// handing it to the link layer, per the ItsAid the caller names.
func (e *Engine) sendSecured(now time.Time, payload []byte, aid security.ItsAid) ([]byte, error) {
	return e.deps.Security.Encap(payload, aid, now)
}

// SendSHB transmits a Single-Hop Broadcast carrying payload, the engine's
// own DCC-MCO reading included when known (§4.6.6).
func (e *Engine) SendSHB(now time.Time, upper wire.UpperProtocol, payload []byte) error {
	shb := wire.SHBRepr{SourcePV: e.ownPV}
	if cbr := e.rate.LocalCBR(); cbr > 0 {
		mco := wire.DccMco{CBRL0Hop: cbr, CBRL1Hop: cbr}
		shb.DccMco = &mco
	}
	ext := make([]byte, wire.SHBHeaderLen)
	if err := shb.Emit(ext); err != nil {
		return err
	}
	common := wire.CommonHeader{
		UpperProtocol: upper,
		HeaderType:    wire.HeaderTypeSHB,
		MaxHopLimit:   1,
		PayloadLength: uint16(len(payload)),
	}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: 1}
	frame, err := wire.BuildFrame(basic, common, ext, payload)
	if err != nil {
		return err
	}
	e.enqueueEgress(now, frame)
	return nil
}

// SendGUC transmits a Geo Unicast packet addressed to dest, parking it in
// the Location-Service-pending buffer and kicking off a resolution if
// dest's position isn't already known (§4.3/§4.6.1).
func (e *Engine) SendGUC(now time.Time, dest gnaddr.Address, upper wire.UpperProtocol, payload []byte, lifetime time.Duration) error {
	entry := e.loctable.Find(dest.LinkAddr)
	seq := e.nextSeq()
	common := wire.CommonHeader{
		UpperProtocol: upper,
		HeaderType:    wire.HeaderTypeGUC,
		MaxHopLimit:   e.cfg.DefaultHopLimit,
		PayloadLength: uint16(len(payload)),
	}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: lifetime, RemainingHopLimit: e.cfg.DefaultHopLimit}

	destSPV := gnaddr.ShortPV{Address: dest}
	if entry != nil {
		destSPV = entry.PositionVector.Short()
	}
	guc := wire.GUCRepr{SequenceNumber: seq, SourcePV: e.ownPV, DestinationPV: destSPV}
	ext := make([]byte, wire.GUCHeaderLen)
	if err := guc.Emit(ext); err != nil {
		return err
	}
	frame, err := wire.BuildFrame(basic, common, ext, payload)
	if err != nil {
		return err
	}

	if entry != nil {
		e.enqueueEgress(now, frame)
		return nil
	}
	return e.bufferPendingGUC(now, dest, frame, basic.Lifetime)
}

// bufferPendingGUC parks a not-yet-sendable GUC frame in the LS buffer and
// starts (or reuses) a Location Service resolution for dest (§4.3).
func (e *Engine) bufferPendingGUC(now time.Time, dest gnaddr.Address, frame []byte, lifetime time.Duration) error {
	_ = e.lsBuf.Enqueue(buffer.Entry{
		Key:       dest.LinkAddr,
		Meta:      buffer.Meta{HeaderSize: len(frame), Lifetime: lifetime},
		Payload:   frame,
		Size:      len(frame),
		ExpiresAt: now.Add(lifetime),
	})

	if _, ok := e.locserv.FindPending(dest); ok {
		return nil
	}
	h, err := e.locserv.Request(dest, now)
	if err != nil {
		return nil // no free slot: payload already parked, will expire naturally
	}
	e.transmitLSRequest(now, h)
	e.locserv.Retransmitted(h, now)
	return nil
}

// transmitLSRequest builds and sends (or resends) the LS-Request for the
// pending resolution h, flooded as a TSB-shaped packet (§4.3).
func (e *Engine) transmitLSRequest(now time.Time, h locservice.Handle) {
	req, ok := e.locserv.Lookup(h)
	if !ok {
		return
	}
	seq := e.nextSeq()
	l := wire.LSRequestRepr{SequenceNumber: seq, SourcePV: e.ownPV, RequestAddress: req.Address}
	ext := make([]byte, wire.LSRequestHeaderLen)
	if err := l.Emit(ext); err != nil {
		return
	}
	common := wire.CommonHeader{HeaderType: wire.HeaderTypeLSRequest, MaxHopLimit: e.cfg.DefaultHopLimit}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: e.cfg.DefaultHopLimit}
	frame, err := wire.BuildFrame(basic, common, ext, nil)
	if err != nil {
		return
	}
	e.enqueueEgress(now, frame)
}

// sendLSReply answers an LS-Request targeting our own address with a
// unicast LS-Reply (§4.3).
func (e *Engine) sendLSReply(now time.Time, requesterPV gnaddr.LongPV) {
	seq := e.nextSeq()
	guc := wire.GUCRepr{SequenceNumber: seq, SourcePV: e.ownPV, DestinationPV: requesterPV.Short()}
	ext := make([]byte, wire.GUCHeaderLen)
	if err := guc.Emit(ext); err != nil {
		return
	}
	common := wire.CommonHeader{HeaderType: wire.HeaderTypeLSReply, MaxHopLimit: e.cfg.DefaultHopLimit}
	basic := wire.BasicHeader{Version: 1, NextHeader: wire.NextHeaderCommon, Lifetime: time.Second, RemainingHopLimit: e.cfg.DefaultHopLimit}
	frame, err := wire.BuildFrame(basic, common, ext, nil)
	if err != nil {
		return
	}
	e.enqueueEgress(now, frame)
}
