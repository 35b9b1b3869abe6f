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

// DccMco is the optional DCC media-coordination field carried in the 4
// reserved bytes of the SHB Extended Header: one-hop channel-busy-ratio
// readings and transmit power, q0.8-fraction encoded.
type DccMco struct {
	CBRL0Hop float64 // local CBR, [0,1]
	CBRL1Hop float64 // one-hop neighbourhood max CBR, [0,1]
	TxPowerDBm uint8  // low 5 bits on the wire, [0,31]; higher bits are dropped
}

// ParseDccMco decodes the 4-byte DCC-MCO field.
func ParseDccMco(b []byte) (DccMco, error) {
	if err := checkLen(b, 4, "dcc-mco"); err != nil {
		return DccMco{}, err
	}
	return DccMco{
		CBRL0Hop:   float64(b[0]) / 255.0,
		CBRL1Hop:   float64(b[1]) / 255.0,
		TxPowerDBm: b[2] & 0x1f,
	}, nil
}

// Emit writes the DCC-MCO field into a 4-byte buffer.
func (d DccMco) Emit(b []byte) error {
	if err := checkLen(b, 4, "dcc-mco"); err != nil {
		return err
	}
	b[0] = floor255(d.CBRL0Hop)
	b[1] = floor255(d.CBRL1Hop)
	tx := d.TxPowerDBm & 0x1f
	b[2] = tx
	b[3] = 0
	return nil
}

func floor255(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v * 255.0)
}
