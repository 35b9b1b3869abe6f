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

// LSRequestHeaderLen is the fixed size of the LS-Request Extended Header.
const LSRequestHeaderLen = 4 + gnaddr.LongPVLen + 8

// LSRequestRepr is the LS-Request Extended Header, carried in a TSB
// transmission: sequence number, source LPV, and the GN address being
// resolved.
type LSRequestRepr struct {
	SequenceNumber gnaddr.SeqNumber
	SourcePV       gnaddr.LongPV
	RequestAddress gnaddr.Address
}

// ParseLSRequest decodes an LS-Request Extended Header.
func ParseLSRequest(b []byte) (LSRequestRepr, error) {
	if err := checkLen(b, LSRequestHeaderLen, "ls-request header"); err != nil {
		return LSRequestRepr{}, err
	}
	const addrStart = 4 + gnaddr.LongPVLen
	lpv, err := gnaddr.ParseLongPV(b[4:addrStart])
	if err != nil {
		return LSRequestRepr{}, err
	}
	addr, err := gnaddr.Parse(b[addrStart:LSRequestHeaderLen])
	if err != nil {
		return LSRequestRepr{}, err
	}
	return LSRequestRepr{
		SequenceNumber: gnaddr.SeqNumber(binary.BigEndian.Uint16(b[0:2])),
		SourcePV:       lpv,
		RequestAddress: addr,
	}, nil
}

// Emit writes the LS-Request Extended Header.
func (r LSRequestRepr) Emit(b []byte) error {
	if err := checkLen(b, LSRequestHeaderLen, "ls-request header"); err != nil {
		return err
	}
	const addrStart = 4 + gnaddr.LongPVLen
	binary.BigEndian.PutUint16(b[0:2], uint16(r.SequenceNumber))
	b[2], b[3] = 0, 0
	r.SourcePV.Emit(b[4:addrStart])
	r.RequestAddress.Emit(b[addrStart:LSRequestHeaderLen])
	return nil
}
