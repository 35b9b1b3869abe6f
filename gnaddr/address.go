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
// Package gnaddr implements the Geonetworking address, sequence number and
// position-vector timestamp primitives shared by every wire header and by the
// location table and location service.
package gnaddr

import (
	"encoding/binary"
	"fmt"
	"net"
)

// StationType enumerates the station_type field of a GN address (ETSI EN
// 302 636-4-1 Annex C).
type StationType uint8

const (
	StationUnknown           StationType = 0
	StationPedestrian        StationType = 1
	StationCyclist           StationType = 2
	StationMoped             StationType = 3
	StationMotorcycle        StationType = 4
	StationPassengerCar      StationType = 5
	StationBus               StationType = 6
	StationLightTruck        StationType = 7
	StationHeavyTruck        StationType = 8
	StationTrailer           StationType = 9
	StationSpecialVehicle    StationType = 10
	StationTram              StationType = 11
	StationRoadSideUnit      StationType = 15
)

func (s StationType) String() string {
	switch s {
	case StationUnknown:
		return "unknown"
	case StationPedestrian:
		return "pedestrian"
	case StationCyclist:
		return "cyclist"
	case StationMoped:
		return "moped"
	case StationMotorcycle:
		return "motorcycle"
	case StationPassengerCar:
		return "passengerCar"
	case StationBus:
		return "bus"
	case StationLightTruck:
		return "lightTruck"
	case StationHeavyTruck:
		return "heavyTruck"
	case StationTrailer:
		return "trailer"
	case StationSpecialVehicle:
		return "specialVehicle"
	case StationTram:
		return "tram"
	case StationRoadSideUnit:
		return "roadSideUnit"
	default:
		return fmt.Sprintf("stationType(%d)", uint8(s))
	}
}

// Address is an 8-byte Geonetworking address: a manual/auto-assignment flag,
// a 5-bit station type, 10 reserved bits, and a 48-bit link-layer address.
type Address struct {
	Manual      bool
	StationType StationType
	LinkAddr    [6]byte
}

// Parse decodes an 8-byte big-endian GN address.
func Parse(b []byte) (Address, error) {
	if len(b) < 8 {
		return Address{}, fmt.Errorf("gnaddr: truncated address (%d bytes)", len(b))
	}
	v := binary.BigEndian.Uint16(b[0:2])
	a := Address{
		Manual:      v&0x8000 != 0,
		StationType: StationType((v >> 10) & 0x1f),
	}
	copy(a.LinkAddr[:], b[2:8])
	return a, nil
}

// Emit writes the address into an 8-byte big-endian buffer.
func (a Address) Emit(b []byte) {
	var v uint16
	if a.Manual {
		v |= 0x8000
	}
	v |= uint16(a.StationType&0x1f) << 10
	binary.BigEndian.PutUint16(b[0:2], v)
	copy(b[2:8], a.LinkAddr[:])
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s", net.HardwareAddr(a.LinkAddr[:]), a.StationType)
}

// Equal reports whether two addresses carry the same link-layer address —
// the field that uniquely identifies a station for location-table purposes.
func (a Address) Equal(b Address) bool {
	return a.LinkAddr == b.LinkAddr
}

// FromMAC builds a manually-configured GN address from a link-layer address.
func FromMAC(mac [6]byte, st StationType) Address {
	return Address{Manual: true, StationType: st, LinkAddr: mac}
}
