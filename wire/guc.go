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
package wire

import (
	"encoding/binary"

	"github.com/veloce/gnrouter/gnaddr"
)

// GUCHeaderLen is the fixed size of the Geo Unicast Extended Header (also
// reused, byte-for-byte, by LS-Reply — the two are distinguished only by the
// Common Header's header_type).
const GUCHeaderLen = 4 + gnaddr.LongPVLen + gnaddr.ShortPVLen

// GUCRepr is the GUC / LS-Reply Extended Header: sequence number, source
// LPV, destination SPV.
type GUCRepr struct {
	SequenceNumber gnaddr.SeqNumber
	SourcePV       gnaddr.LongPV
	DestinationPV  gnaddr.ShortPV
}

// ParseGUC decodes a GUC or LS-Reply Extended Header.
func ParseGUC(b []byte) (GUCRepr, error) {
	if err := checkLen(b, GUCHeaderLen, "guc header"); err != nil {
		return GUCRepr{}, err
	}
	const spvStart = 4 + gnaddr.LongPVLen
	lpv, err := gnaddr.ParseLongPV(b[4:spvStart])
	if err != nil {
		return GUCRepr{}, err
	}
	spv, err := gnaddr.ParseShortPV(b[spvStart:GUCHeaderLen])
	if err != nil {
		return GUCRepr{}, err
	}
	return GUCRepr{
		SequenceNumber: gnaddr.SeqNumber(binary.BigEndian.Uint16(b[0:2])),
		SourcePV:       lpv,
		DestinationPV:  spv,
	}, nil
}

// Emit writes the GUC / LS-Reply Extended Header.
func (r GUCRepr) Emit(b []byte) error {
	if err := checkLen(b, GUCHeaderLen, "guc header"); err != nil {
		return err
	}
	const spvStart = 4 + gnaddr.LongPVLen
	binary.BigEndian.PutUint16(b[0:2], uint16(r.SequenceNumber))
	b[2], b[3] = 0, 0
	r.SourcePV.Emit(b[4:spvStart])
	r.DestinationPV.Emit(b[spvStart:GUCHeaderLen])
	return nil
}
