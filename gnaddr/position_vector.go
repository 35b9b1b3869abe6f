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
package gnaddr

import (
	"encoding/binary"
	"fmt"
)

// LongPV is a 24-byte Long Position Vector: GN address, timestamp, position
// and kinematics of the originating station.
type LongPV struct {
	Address  Address
	Timestamp PVTimestamp
	// Latitude/Longitude are tenths of microdegrees, signed.
	Latitude  int32
	Longitude int32
	Accurate  bool
	// Speed is in 0.01 m/s, signed 15-bit magnitude.
	Speed int16
	// Heading is in 0.1 degrees, 0..3599.
	Heading uint16
}

// ShortPV is a 20-byte Short Position Vector — an LPV without accuracy,
// speed or heading.
type ShortPV struct {
	Address   Address
	Timestamp PVTimestamp
	Latitude  int32
	Longitude int32
}

const (
	LongPVLen  = 24
	ShortPVLen = 20
)

// ParseLongPV decodes a 24-byte LPV.
func ParseLongPV(b []byte) (LongPV, error) {
	if len(b) < LongPVLen {
		return LongPV{}, fmt.Errorf("gnaddr: truncated long position vector (%d bytes)", len(b))
	}
	addr, err := Parse(b[0:8])
	if err != nil {
		return LongPV{}, err
	}
	lat := int32(binary.BigEndian.Uint32(b[12:16]))
	lon := int32(binary.BigEndian.Uint32(b[16:20]))
	speedAccuracy := binary.BigEndian.Uint16(b[20:22])
	heading := binary.BigEndian.Uint16(b[22:24])
	return LongPV{
		Address:   addr,
		Timestamp: PVTimestamp(binary.BigEndian.Uint32(b[8:12])),
		Latitude:  lat,
		Longitude: lon,
		Accurate:  speedAccuracy&0x8000 != 0,
		Speed:     int16((speedAccuracy&0x7fff)<<1) >> 1, // low 15 bits, sign extended
		Heading:   heading % 3600,
	}, nil
}

// Emit writes the LPV into a 24-byte big-endian buffer.
func (l LongPV) Emit(b []byte) {
	l.Address.Emit(b[0:8])
	binary.BigEndian.PutUint32(b[8:12], uint32(l.Timestamp))
	binary.BigEndian.PutUint32(b[12:16], uint32(l.Latitude))
	binary.BigEndian.PutUint32(b[16:20], uint32(l.Longitude))
	speedAccuracy := uint16(l.Speed) & 0x7fff
	if l.Accurate {
		speedAccuracy |= 0x8000
	}
	binary.BigEndian.PutUint16(b[20:22], speedAccuracy)
	binary.BigEndian.PutUint16(b[22:24], l.Heading)
}

// Short discards accuracy/speed/heading, yielding the SPV carried in GUC and
// LS-Reply destination fields.
func (l LongPV) Short() ShortPV {
	return ShortPV{Address: l.Address, Timestamp: l.Timestamp, Latitude: l.Latitude, Longitude: l.Longitude}
}

// ParseShortPV decodes a 20-byte SPV.
func ParseShortPV(b []byte) (ShortPV, error) {
	if len(b) < ShortPVLen {
		return ShortPV{}, fmt.Errorf("gnaddr: truncated short position vector (%d bytes)", len(b))
	}
	addr, err := Parse(b[0:8])
	if err != nil {
		return ShortPV{}, err
	}
	return ShortPV{
		Address:   addr,
		Timestamp: PVTimestamp(binary.BigEndian.Uint32(b[8:12])),
		Latitude:  int32(binary.BigEndian.Uint32(b[12:16])),
		Longitude: int32(binary.BigEndian.Uint32(b[16:20])),
	}, nil
}

// Emit writes the SPV into a 20-byte big-endian buffer.
func (s ShortPV) Emit(b []byte) {
	s.Address.Emit(b[0:8])
	binary.BigEndian.PutUint32(b[8:12], uint32(s.Timestamp))
	binary.BigEndian.PutUint32(b[12:16], uint32(s.Latitude))
	binary.BigEndian.PutUint32(b[16:20], uint32(s.Longitude))
}

// LatitudeDegrees returns the latitude as decimal degrees.
func (l LongPV) LatitudeDegrees() float64 { return float64(l.Latitude) / 1e7 }

// LongitudeDegrees returns the longitude as decimal degrees.
func (l LongPV) LongitudeDegrees() float64 { return float64(l.Longitude) / 1e7 }

// SpeedMetersPerSecond returns the speed in m/s.
func (l LongPV) SpeedMetersPerSecond() float64 { return float64(l.Speed) / 100.0 }

// HeadingDegrees returns the heading in degrees.
func (l LongPV) HeadingDegrees() float64 { return float64(l.Heading) / 10.0 }
