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

import "time"

// NextHeaderType is the Basic Header's next_header field.
type NextHeaderType uint8

const (
	NextHeaderAny    NextHeaderType = 0
	NextHeaderCommon NextHeaderType = 1
	NextHeaderSecured NextHeaderType = 2
)

// BasicHeaderLen is the fixed size of the Basic Header.
const BasicHeaderLen = 4

// lifetime bases, smallest unit first. Index corresponds to the 2-bit
// base selector in the lifetime byte's low bits.
var lifetimeBases = [4]time.Duration{
	50 * time.Millisecond,
	time.Second,
	10 * time.Second,
	100 * time.Second,
}

// BasicHeader is the 4-byte outermost Geonetworking header.
type BasicHeader struct {
	Version           uint8
	NextHeader        NextHeaderType
	Lifetime          time.Duration
	RemainingHopLimit uint8
}

// ParseBasicHeader decodes the 4-byte Basic Header.
func ParseBasicHeader(b []byte) (BasicHeader, error) {
	if err := checkLen(b, BasicHeaderLen, "basic header"); err != nil {
		return BasicHeader{}, err
	}
	version := b[0] >> 4
	nh := NextHeaderType(b[0] & 0x0f)
	lt, err := decodeLifetime(b[2])
	if err != nil {
		return BasicHeader{}, err
	}
	return BasicHeader{
		Version:           version,
		NextHeader:        nh,
		Lifetime:          lt,
		RemainingHopLimit: b[3],
	}, nil
}

// Emit writes the Basic Header into a 4-byte buffer.
func (h BasicHeader) Emit(b []byte) error {
	if err := checkLen(b, BasicHeaderLen, "basic header"); err != nil {
		return err
	}
	b[0] = (h.Version << 4) | uint8(h.NextHeader&0x0f)
	b[1] = 0
	lt, err := encodeLifetime(h.Lifetime)
	if err != nil {
		return err
	}
	b[2] = lt
	b[3] = h.RemainingHopLimit
	return nil
}

// decodeLifetime unpacks the lifetime byte: low 2 bits select a base unit,
// high 6 bits are the multiplier.
func decodeLifetime(v uint8) (time.Duration, error) {
	base := lifetimeBases[v&0x03]
	mult := time.Duration(v >> 2)
	return base * mult, nil
}

// encodeLifetime picks the coarsest base (100s, 10s, 1s, 50ms in that
// order) that exactly represents d with a multiplier in [1,63]. A zero
// lifetime is rejected: see DESIGN.md's Open Question decision — a packet
// with no lifetime can never be forwarded or buffered, so constructing one
// is always a caller bug.
func encodeLifetime(d time.Duration) (uint8, error) {
	if d <= 0 {
		return 0, errMalformed("lifetime must be positive")
	}
	for i := len(lifetimeBases) - 1; i >= 0; i-- {
		base := lifetimeBases[i]
		if d%base == 0 {
			mult := d / base
			if mult >= 1 && mult <= 63 {
				return uint8(mult<<2) | uint8(i), nil
			}
		}
	}
	return 0, errMalformed("lifetime not representable")
}
