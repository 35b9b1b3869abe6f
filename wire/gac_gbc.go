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

// AreaShape identifies the geometric shape carried by a GAC/GBC header,
// mirrored by the Common Header's header_type (…Circle / …Rect / …Ellipse).
type AreaShape uint8

const (
	ShapeCircle AreaShape = iota
	ShapeRectangle
	ShapeEllipse
)

// GeoAreaHeaderLen is the fixed size of the GAC/GBC Extended Header.
const GeoAreaHeaderLen = 4 + gnaddr.LongPVLen + 16

// GeoAreaRepr is the GAC/GBC Extended Header: sequence number, source LPV,
// and the geometric area descriptor (centre + distances + rotation angle).
type GeoAreaRepr struct {
	SequenceNumber gnaddr.SeqNumber
	SourcePV       gnaddr.LongPV
	Latitude       int32
	Longitude      int32
	DistanceA      uint16 // metres; circle radius, or rectangle/ellipse semi-major
	DistanceB      uint16 // metres; zero for circle, semi-minor for rectangle/ellipse
	AngleDegrees   uint16 // rotation of the major axis from north, 0..359
}

// ParseGeoArea decodes a GAC/GBC Extended Header.
func ParseGeoArea(b []byte) (GeoAreaRepr, error) {
	if err := checkLen(b, GeoAreaHeaderLen, "geo-area header"); err != nil {
		return GeoAreaRepr{}, err
	}
	const pvStart = 4
	const pvEnd = pvStart + gnaddr.LongPVLen
	lpv, err := gnaddr.ParseLongPV(b[pvStart:pvEnd])
	if err != nil {
		return GeoAreaRepr{}, err
	}
	return GeoAreaRepr{
		SequenceNumber: gnaddr.SeqNumber(binary.BigEndian.Uint16(b[0:2])),
		SourcePV:       lpv,
		Latitude:       int32(binary.BigEndian.Uint32(b[pvEnd : pvEnd+4])),
		Longitude:      int32(binary.BigEndian.Uint32(b[pvEnd+4 : pvEnd+8])),
		DistanceA:      binary.BigEndian.Uint16(b[pvEnd+8 : pvEnd+10]),
		DistanceB:      binary.BigEndian.Uint16(b[pvEnd+10 : pvEnd+12]),
		AngleDegrees:   binary.BigEndian.Uint16(b[pvEnd+12 : pvEnd+14]),
	}, nil
}

// Emit writes the GAC/GBC Extended Header.
func (r GeoAreaRepr) Emit(b []byte) error {
	if err := checkLen(b, GeoAreaHeaderLen, "geo-area header"); err != nil {
		return err
	}
	const pvStart = 4
	const pvEnd = pvStart + gnaddr.LongPVLen
	binary.BigEndian.PutUint16(b[0:2], uint16(r.SequenceNumber))
	b[2], b[3] = 0, 0
	r.SourcePV.Emit(b[pvStart:pvEnd])
	binary.BigEndian.PutUint32(b[pvEnd:pvEnd+4], uint32(r.Latitude))
	binary.BigEndian.PutUint32(b[pvEnd+4:pvEnd+8], uint32(r.Longitude))
	binary.BigEndian.PutUint16(b[pvEnd+8:pvEnd+10], r.DistanceA)
	binary.BigEndian.PutUint16(b[pvEnd+10:pvEnd+12], r.DistanceB)
	binary.BigEndian.PutUint16(b[pvEnd+12:pvEnd+14], r.AngleDegrees)
	binary.BigEndian.PutUint16(b[pvEnd+14:pvEnd+16], 0)
	return nil
}

// LatitudeDegrees returns the area centre latitude in decimal degrees.
func (r GeoAreaRepr) LatitudeDegrees() float64 { return float64(r.Latitude) / 1e7 }

// LongitudeDegrees returns the area centre longitude in decimal degrees.
func (r GeoAreaRepr) LongitudeDegrees() float64 { return float64(r.Longitude) / 1e7 }
