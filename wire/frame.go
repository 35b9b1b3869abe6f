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

// BuildFrame concatenates a Basic Header, Common Header, extended header
// bytes and payload into one outgoing GN frame. The caller is responsible
// for having set common.PayloadLength to len(payload) beforehand.
func BuildFrame(basic BasicHeader, common CommonHeader, ext []byte, payload []byte) ([]byte, error) {
	out := make([]byte, BasicHeaderLen+CommonHeaderLen+len(ext)+len(payload))
	if err := basic.Emit(out[0:BasicHeaderLen]); err != nil {
		return nil, err
	}
	if err := common.Emit(out[BasicHeaderLen : BasicHeaderLen+CommonHeaderLen]); err != nil {
		return nil, err
	}
	copy(out[BasicHeaderLen+CommonHeaderLen:BasicHeaderLen+CommonHeaderLen+len(ext)], ext)
	copy(out[BasicHeaderLen+CommonHeaderLen+len(ext):], payload)
	return out, nil
}

// SplitFrame parses the Basic and Common headers off the front of b and
// returns them plus the remaining bytes (extended header + payload).
func SplitFrame(b []byte) (BasicHeader, CommonHeader, []byte, error) {
	basic, err := ParseBasicHeader(b)
	if err != nil {
		return BasicHeader{}, CommonHeader{}, nil, err
	}
	rest := b[BasicHeaderLen:]
	if basic.NextHeader != NextHeaderCommon {
		return basic, CommonHeader{}, rest, nil
	}
	common, err := ParseCommonHeader(rest)
	if err != nil {
		return basic, CommonHeader{}, nil, err
	}
	return basic, common, rest[CommonHeaderLen:], nil
}
