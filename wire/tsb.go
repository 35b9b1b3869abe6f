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

// TSBHeaderLen is the fixed size of the Topologically Scoped Broadcast
// Extended Header.
const TSBHeaderLen = 4 + gnaddr.LongPVLen

// TSBRepr is the TSB Extended Header: a sequence number plus the source LPV.
type TSBRepr struct {
	SequenceNumber gnaddr.SeqNumber
	SourcePV       gnaddr.LongPV
}

// ParseTSB decodes a TSB Extended Header.
func ParseTSB(b []byte) (TSBRepr, error) {
	if err := checkLen(b, TSBHeaderLen, "tsb header"); err != nil {
		return TSBRepr{}, err
	}
	lpv, err := gnaddr.ParseLongPV(b[4:TSBHeaderLen])
	if err != nil {
		return TSBRepr{}, err
	}
	return TSBRepr{
		SequenceNumber: gnaddr.SeqNumber(binary.BigEndian.Uint16(b[0:2])),
		SourcePV:       lpv,
	}, nil
}

// Emit writes the TSB Extended Header.
func (r TSBRepr) Emit(b []byte) error {
	if err := checkLen(b, TSBHeaderLen, "tsb header"); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b[0:2], uint16(r.SequenceNumber))
	b[2], b[3] = 0, 0
	r.SourcePV.Emit(b[4:TSBHeaderLen])
	return nil
}
