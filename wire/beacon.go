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

// BeaconHeaderLen is the fixed size of the Beacon Extended Header.
const BeaconHeaderLen = gnaddr.LongPVLen

// BeaconRepr is the Beacon Extended Header: the source's own Long Position
// Vector, broadcast periodically to let neighbours learn of this station.
type BeaconRepr struct {
	SourcePV gnaddr.LongPV
}

// ParseBeacon decodes a Beacon Extended Header.
func ParseBeacon(b []byte) (BeaconRepr, error) {
	if err := checkLen(b, BeaconHeaderLen, "beacon header"); err != nil {
		return BeaconRepr{}, err
	}
	lpv, err := gnaddr.ParseLongPV(b)
	if err != nil {
		return BeaconRepr{}, err
	}
	return BeaconRepr{SourcePV: lpv}, nil
}

// Emit writes the Beacon Extended Header.
func (r BeaconRepr) Emit(b []byte) error {
	if err := checkLen(b, BeaconHeaderLen, "beacon header"); err != nil {
		return err
	}
	r.SourcePV.Emit(b)
	return nil
}
