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

import "github.com/veloce/gnrouter/gnaddr"

// SHBHeaderLen is the fixed size of the Single-Hop Broadcast Extended
// Header: the source LPV plus 4 reserved bytes, which may carry a DccMco.
const SHBHeaderLen = gnaddr.LongPVLen + 4

// SHBRepr is the SHB Extended Header.
type SHBRepr struct {
	SourcePV gnaddr.LongPV
	DccMco   *DccMco // nil when the reserved bytes carry no DCC-MCO field
}

// ParseSHB decodes an SHB Extended Header.
func ParseSHB(b []byte) (SHBRepr, error) {
	if err := checkLen(b, SHBHeaderLen, "shb header"); err != nil {
		return SHBRepr{}, err
	}
	lpv, err := gnaddr.ParseLongPV(b[0:gnaddr.LongPVLen])
	if err != nil {
		return SHBRepr{}, err
	}
	reserved := b[gnaddr.LongPVLen:SHBHeaderLen]
	r := SHBRepr{SourcePV: lpv}
	if reserved[0] != 0 || reserved[1] != 0 || reserved[2] != 0 {
		mco, err := ParseDccMco(reserved)
		if err != nil {
			return SHBRepr{}, err
		}
		r.DccMco = &mco
	}
	return r, nil
}

// Emit writes the SHB Extended Header.
func (r SHBRepr) Emit(b []byte) error {
	if err := checkLen(b, SHBHeaderLen, "shb header"); err != nil {
		return err
	}
	r.SourcePV.Emit(b[0:gnaddr.LongPVLen])
	reserved := b[gnaddr.LongPVLen:SHBHeaderLen]
	if r.DccMco != nil {
		return r.DccMco.Emit(reserved)
	}
	reserved[0], reserved[1], reserved[2], reserved[3] = 0, 0, 0, 0
	return nil
}
