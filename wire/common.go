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
	"fmt"
)

// UpperProtocol is the Common Header's upper_protocol field.
type UpperProtocol uint8

const (
	UpperProtocolAny  UpperProtocol = 0
	UpperProtocolBTPA UpperProtocol = 1
	UpperProtocolBTPB UpperProtocol = 2
	UpperProtocolIPv6 UpperProtocol = 3
)

// HeaderType identifies the Extended Header that follows the Common Header.
type HeaderType uint8

const (
	HeaderTypeBeacon       HeaderType = 0x10
	HeaderTypeGUC          HeaderType = 0x20
	HeaderTypeGACCircle    HeaderType = 0x30
	HeaderTypeGACRect      HeaderType = 0x31
	HeaderTypeGACEllipse   HeaderType = 0x32
	HeaderTypeGBCCircle    HeaderType = 0x40
	HeaderTypeGBCRect      HeaderType = 0x41
	HeaderTypeGBCEllipse   HeaderType = 0x42
	HeaderTypeSHB          HeaderType = 0x50
	HeaderTypeTSB          HeaderType = 0x51
	HeaderTypeLSRequest    HeaderType = 0x60
	HeaderTypeLSReply      HeaderType = 0x61
)

func (h HeaderType) String() string {
	switch h {
	case HeaderTypeBeacon:
		return "beacon"
	case HeaderTypeGUC:
		return "guc"
	case HeaderTypeGACCircle:
		return "gac-circle"
	case HeaderTypeGACRect:
		return "gac-rect"
	case HeaderTypeGACEllipse:
		return "gac-ellipse"
	case HeaderTypeGBCCircle:
		return "gbc-circle"
	case HeaderTypeGBCRect:
		return "gbc-rect"
	case HeaderTypeGBCEllipse:
		return "gbc-ellipse"
	case HeaderTypeSHB:
		return "shb"
	case HeaderTypeTSB:
		return "tsb"
	case HeaderTypeLSRequest:
		return "ls-request"
	case HeaderTypeLSReply:
		return "ls-reply"
	default:
		return fmt.Sprintf("headerType(0x%02x)", uint8(h))
	}
}

// TrafficClass is a single byte: store-carry-forward flag, channel-offload
// flag (always emitted as zero per v1.4.1), and a 6-bit traffic class id.
type TrafficClass struct {
	StoreCarryForward bool
	ID                uint8
}

func parseTrafficClass(b byte) TrafficClass {
	return TrafficClass{
		StoreCarryForward: b&0x80 != 0,
		ID:                b & 0x3f,
	}
}

func (t TrafficClass) emit() byte {
	var v byte
	if t.StoreCarryForward {
		v |= 0x80
	}
	v |= t.ID & 0x3f
	return v
}

// CommonHeaderLen is the fixed size of the Common Header.
const CommonHeaderLen = 8

// CommonHeader is the 8-byte header following the Basic Header.
type CommonHeader struct {
	UpperProtocol UpperProtocol
	HeaderType    HeaderType
	TrafficClass  TrafficClass
	Mobile        bool
	PayloadLength uint16
	MaxHopLimit   uint8
}

// ParseCommonHeader decodes the 8-byte Common Header.
func ParseCommonHeader(b []byte) (CommonHeader, error) {
	if err := checkLen(b, CommonHeaderLen, "common header"); err != nil {
		return CommonHeader{}, err
	}
	return CommonHeader{
		UpperProtocol: UpperProtocol(b[0] >> 4),
		HeaderType:    HeaderType(b[1]),
		TrafficClass:  parseTrafficClass(b[2]),
		Mobile:        b[3]&0x80 != 0,
		PayloadLength: binary.BigEndian.Uint16(b[4:6]),
		MaxHopLimit:   b[6],
	}, nil
}

// Emit writes the Common Header into an 8-byte buffer.
func (h CommonHeader) Emit(b []byte) error {
	if err := checkLen(b, CommonHeaderLen, "common header"); err != nil {
		return err
	}
	b[0] = uint8(h.UpperProtocol&0x0f) << 4
	b[1] = uint8(h.HeaderType)
	b[2] = h.TrafficClass.emit()
	var flags byte
	if h.Mobile {
		flags |= 0x80
	}
	b[3] = flags
	binary.BigEndian.PutUint16(b[4:6], h.PayloadLength)
	b[6] = h.MaxHopLimit
	b[7] = 0
	return nil
}

// CheckPayloadLength validates the Common Header's declared payload_length
// against the number of bytes actually following the extended header.
func (h CommonHeader) CheckPayloadLength(trailingBytes int) error {
	if int(h.PayloadLength) != trailingBytes {
		return errLengthMismatch(fmt.Sprintf("declared %d, actual %d", h.PayloadLength, trailingBytes))
	}
	return nil
}
